package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/services"
	"github.com/example/sooq/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type shippingAddressRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

type createOrderRequest struct {
	ShippingAddress shippingAddressRequest `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	Notes           string                 `json:"notes"`
	PromoCode       string                 `json:"promo_code"`
	ShippingCost    *float64               `json:"shipping_cost"`
}

// CreateOrder converts the caller's active cart into an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.CreateOrder(c.Context(), userID, services.CreateOrderInput{
		ShippingAddress: models.ShippingAddress{
			FirstName:  req.ShippingAddress.FirstName,
			LastName:   req.ShippingAddress.LastName,
			Phone:      req.ShippingAddress.Phone,
			Email:      req.ShippingAddress.Email,
			Country:    req.ShippingAddress.Country,
			City:       req.ShippingAddress.City,
			Address:    req.ShippingAddress.Address,
			PostalCode: req.ShippingAddress.PostalCode,
		},
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		PromoCode:     req.PromoCode,
		ShippingCost:  req.ShippingCost,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.Context(), userID, c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrder(c.Context(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}

// ListAllOrders returns every order, admin only.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListAllOrders(c.Context(), c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrderAdmin returns any order by id, admin only.
func (h *OrderHandler) GetOrderAdmin(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrderAdmin(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}

// MarkDelivered records delivery confirmation, admin only.
func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.MarkDelivered(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}
