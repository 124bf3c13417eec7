package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/config"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/utils"
)

const (
	userContextKey = "currentUserID"
	roleContextKey = "currentUserRole"

	sessionCookie = "sessionId"
	sessionHeader = "X-Session-ID"
)

func parseBearer(c *fiber.Ctx, secret string) (uuid.UUID, string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return uuid.Nil, "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, "", false
	}

	userID, role, err := utils.ParseToken(secret, parts[1])
	if err != nil {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

// AuthMiddleware validates JWT tokens and loads the authenticated user ID into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, role, ok := parseBearer(c, cfg.JWTSecret)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid authorization")
		}

		c.Locals(userContextKey, userID)
		c.Locals(roleContextKey, role)
		return c.Next()
	}
}

// OptionalAuthMiddleware loads the user when a valid token is present
// but lets anonymous requests through; guest carts are keyed by the
// session id instead.
func OptionalAuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, role, ok := parseBearer(c, cfg.JWTSecret); ok {
			c.Locals(userContextKey, userID)
			c.Locals(roleContextKey, role)
		}
		return c.Next()
	}
}

// RequireAdmin rejects non-admin principals. It must run after AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(roleContextKey).(string)
		if role != models.RoleAdmin {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetSessionID returns the anonymous session identifier from the
// session cookie or header, if any.
func GetSessionID(c *fiber.Ctx) (string, bool) {
	if sid := c.Cookies(sessionCookie); sid != "" {
		return sid, true
	}
	if sid := c.Get(sessionHeader); sid != "" {
		return sid, true
	}
	return "", false
}

// SetSessionCookie issues a fresh guest session cookie.
func SetSessionCookie(c *fiber.Ctx, sessionID string, maxAgeSeconds int) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		MaxAge:   maxAgeSeconds,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie drops the guest session cookie after a merge.
func ClearSessionCookie(c *fiber.Ctx) {
	c.ClearCookie(sessionCookie)
}
