package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/config"
	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/services"
)

// PaymentHandler manages payment endpoints: charge creation, the
// server-to-server webhook and the browser callback redirect.
type PaymentHandler struct {
	payments *services.PaymentService
	cfg      *config.Config
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{payments: payments, cfg: cfg}
}

type createPaymentRequest struct {
	OrderID string `json:"order_id"`
	Source  struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"source"`
}

// CreatePayment charges the caller's order through the gateway.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	intent, err := h.payments.CreatePayment(c.Context(), userID, orderID, services.PaymentSource{
		Type:  req.Source.Type,
		Token: req.Source.Token,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"payment": intent,
	})
}

// Webhook receives asynchronous payment status notifications. The
// payload is untrusted; the service re-fetches the authoritative
// status before applying anything.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var payload services.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unparseable webhook payload")
	}

	order, err := h.payments.HandleWebhook(c.Context(), payload)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   fiber.Map{"id": order.ID, "status": order.Status, "paid": order.Paid},
	})
}

// Callback is the user-facing redirect target after gateway checkout.
// It never renders an API error: anything short of a confirmed
// payment lands on the failure page.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	result := h.payments.HandleCallback(c.Context(), c.Query("id"))
	if result.Succeeded {
		return c.Redirect(h.cfg.SuccessRedirect, fiber.StatusFound)
	}
	return c.Redirect(h.cfg.FailureRedirect, fiber.StatusFound)
}

// Refund refunds an order's payment, admin only.
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.payments.RefundPayment(c.Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}

// Cancel force-cancels an order's payment, admin only.
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.payments.CancelPayment(c.Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}
