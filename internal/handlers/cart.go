package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/services"
)

// CartHandler manages cart endpoints for both registered users and
// anonymous sessions.
type CartHandler struct {
	carts *services.CartService
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// resolveOwner picks the cart owner for this request: the
// authenticated user when present, otherwise the guest session. A
// missing session is created on demand when issueSession is true.
func (h *CartHandler) resolveOwner(c *fiber.Ctx, issueSession bool) (services.Owner, bool) {
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		return services.UserOwner(userID), true
	}

	if sid, ok := middleware.GetSessionID(c); ok {
		return services.SessionOwner(sid), true
	}

	if !issueSession {
		return services.Owner{}, false
	}

	sid := newSessionID()
	middleware.SetSessionCookie(c, sid, 7*24*60*60)
	return services.SessionOwner(sid), true
}

func newSessionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// splitCSV parses an optional comma-separated query value.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type addItemRequest struct {
	ProductID string   `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Colors    []string `json:"colors"`
	Sizes     []string `json:"sizes"`
}

// AddItem adds a product variant to the cart.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	owner, _ := h.resolveOwner(c, true)
	cart, err := h.carts.AddItem(c.Context(), owner, productID, req.Quantity, services.Variant{
		Colors: req.Colors,
		Sizes:  req.Sizes,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart})
}

type updateQuantityRequest struct {
	Quantity int      `json:"quantity"`
	Colors   []string `json:"colors"`
	Sizes    []string `json:"sizes"`
}

// UpdateQuantity sets a cart line's quantity.
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var req updateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	owner, ok := h.resolveOwner(c, false)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "cart not found")
	}

	cart, err := h.carts.UpdateQuantity(c.Context(), owner, productID, services.Variant{
		Colors: req.Colors,
		Sizes:  req.Sizes,
	}, req.Quantity)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart})
}

// RemoveItem removes a product's line(s) from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	owner, ok := h.resolveOwner(c, false)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "cart not found")
	}

	cart, err := h.carts.RemoveItem(c.Context(), owner, productID, services.Variant{
		Colors: splitCSV(c.Query("colors")),
		Sizes:  splitCSV(c.Query("sizes")),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart})
}

// GetCart returns the current cart snapshot, empty when none exists.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	owner, ok := h.resolveOwner(c, false)
	if !ok {
		return c.JSON(fiber.Map{"success": true, "cart": []any{}, "total_price": 0})
	}

	cart, err := h.carts.Snapshot(c.Context(), owner)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart.Items, "total_price": cart.TotalPrice})
}

// MergeGuestCart folds the guest session's cart into the user's cart
// after login and clears the session cookie.
func (h *CartHandler) MergeGuestCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	sid, ok := middleware.GetSessionID(c)
	if !ok {
		return c.JSON(fiber.Map{"success": true, "message": "no guest cart to merge"})
	}

	cart, err := h.carts.MergeGuestCart(c.Context(), sid, userID)
	if err != nil {
		return err
	}

	middleware.ClearSessionCookie(c)
	return c.JSON(fiber.Map{"success": true, "cart": cart})
}
