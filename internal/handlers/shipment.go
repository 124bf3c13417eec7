package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/services"
)

// ShipmentHandler manages shipment endpoints and the courier webhook.
type ShipmentHandler struct {
	shipments *services.ShipmentService
}

// NewShipmentHandler constructs a ShipmentHandler.
func NewShipmentHandler(shipments *services.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments}
}

// ListMyShipments returns the caller's shipments.
func (h *ShipmentHandler) ListMyShipments(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	shipments, err := h.shipments.ListUserShipments(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "shipments": shipments})
}

// Track returns one shipment by tracking number.
func (h *ShipmentHandler) Track(c *fiber.Ctx) error {
	tracking := c.Params("trackingNumber")
	if tracking == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tracking number is required")
	}

	shipment, err := h.shipments.GetByTracking(c.Context(), tracking)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "shipment": shipment})
}

// Retrigger re-attempts courier dispatch for an order, admin only.
// Safe because shipment creation is idempotent.
func (h *ShipmentHandler) Retrigger(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	shipment, err := h.shipments.EnsureShipment(c.Context(), orderID)
	if err != nil {
		return err
	}
	if shipment == nil {
		return c.JSON(fiber.Map{"success": true, "message": "shipment creation already in progress"})
	}

	return c.JSON(fiber.Map{"success": true, "shipment": shipment})
}

type courierWebhookPayload struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
}

// CourierWebhook applies courier status notifications.
func (h *ShipmentHandler) CourierWebhook(c *fiber.Ctx) error {
	var payload courierWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unparseable webhook payload")
	}
	if payload.TrackingNumber == "" {
		return fiber.NewError(fiber.StatusBadRequest, "trackingNumber is required")
	}

	shipment, err := h.shipments.UpdateStatus(c.Context(), payload.TrackingNumber, payload.Status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "shipment": shipment})
}
