package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/services"
)

// WishlistHandler manages the authenticated user's wishlist.
type WishlistHandler struct {
	db    *gorm.DB
	carts *services.CartService
}

// NewWishlistHandler constructs a WishlistHandler.
func NewWishlistHandler(db *gorm.DB, carts *services.CartService) *WishlistHandler {
	return &WishlistHandler{db: db, carts: carts}
}

func (h *WishlistHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// List returns the wishlist products.
func (h *WishlistHandler) List(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var products []models.Product
	if err := h.db.Model(user).Association("Wishlist").Find(&products); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "wishlist": products})
}

// Add puts a product on the wishlist. Adding twice is a no-op.
func (h *WishlistHandler) Add(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	if err := h.db.Model(user).Association("Wishlist").Append(&product); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "product added to wishlist"})
}

// Remove takes a product off the wishlist.
func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.db.Model(user).Association("Wishlist").Delete(&models.Product{BaseModel: models.BaseModel{ID: productID}}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "product removed from wishlist"})
}

// MoveAllToCart moves every wishlist product into the cart.
func (h *WishlistHandler) MoveAllToCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.carts.MoveWishlistToCart(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart})
}

// MoveItemToCart moves one wishlist product into the cart.
func (h *WishlistHandler) MoveItemToCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	cart, err := h.carts.MoveWishlistItemToCart(c.Context(), userID, productID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart": cart})
}
