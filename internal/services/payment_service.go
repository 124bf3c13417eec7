package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/pricing"
)

// PaymentService charges orders through the payment gateway and
// applies asynchronous status notifications to the order state
// machine. Webhook handling is idempotent: the same delivery can
// arrive more than once and must settle on the same state.
type PaymentService struct {
	db        *gorm.DB
	gateway   PaymentGateway
	orders    *OrderService
	shipments *ShipmentService
	logger    zerolog.Logger

	callbackURL string
	webhookURL  string
	currency    string
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, gateway PaymentGateway, orders *OrderService, shipments *ShipmentService, logger zerolog.Logger, callbackURL, webhookURL string) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		orders:      orders,
		shipments:   shipments,
		logger:      logger.With().Str("component", "payments").Logger(),
		callbackURL: callbackURL,
		webhookURL:  webhookURL,
		currency:    "SAR",
	}
}

// PaymentIntent is the outcome of charge creation. When the gateway
// answers with an in-progress status the end user must be redirected
// to the challenge URL instead of treating the charge as settled.
type PaymentIntent struct {
	Payment          *GatewayPayment `json:"payment"`
	RequiresRedirect bool            `json:"requires_redirect"`
	RedirectURL      string          `json:"redirect_url,omitempty"`
}

// CreatePayment charges an order's final price in minor currency
// units. The gateway's payment id is persisted on the order before
// returning so webhook deliveries can always be correlated.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, orderID uuid.UUID, source PaymentSource) (*PaymentIntent, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	if order.Status != models.OrderStatusPending || order.Paid {
		return nil, apperr.Conflict("order %s is not awaiting payment", order.OrderNumber)
	}
	if source.Type == "" {
		return nil, apperr.InvalidInput("payment source is required")
	}

	req := CreateChargeRequest{
		Amount:      pricing.MinorUnits(order.FinalPrice),
		Currency:    s.currency,
		Description: "Order " + order.OrderNumber,
		CallbackURL: s.callbackURL,
		WebhookURL:  s.webhookURL,
		Source:      source,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	}

	payment, err := s.gateway.CreateCharge(ctx, req, uuid.NewString())
	if err != nil {
		return nil, apperr.Upstream(err, "payment gateway charge failed")
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"payment_id":     payment.ID,
			"payment_status": payment.Status,
		}).Error; err != nil {
		return nil, err
	}

	intent := &PaymentIntent{Payment: payment}
	if payment.Status == PaymentStatusInitiated && payment.Source.TransactionURL != "" {
		intent.RequiresRedirect = true
		intent.RedirectURL = payment.Source.TransactionURL
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("payment_id", payment.ID).
		Str("status", payment.Status).
		Msg("payment created")

	return intent, nil
}

// WebhookPayload is the inbound notification shape. Only the payment
// id is trusted; the status is always re-fetched from the gateway.
type WebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

// PaymentID resolves the payment identifier from either payload shape.
func (p WebhookPayload) PaymentID() string {
	if p.Data.ID != "" {
		return p.Data.ID
	}
	return p.ID
}

// HandleWebhook applies an asynchronous payment notification. It
// re-fetches the authoritative charge state, maps it onto the order
// state machine, and dispatches the shipment on the first transition
// into confirmed. Unknown orders are NotFound so integration bugs
// are not silently masked.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload WebhookPayload) (*models.Order, error) {
	paymentID := payload.PaymentID()
	if paymentID == "" {
		return nil, apperr.InvalidInput("webhook payload missing payment id")
	}

	payment, err := s.gateway.GetCharge(ctx, paymentID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to fetch payment %s", paymentID)
	}

	order, err := s.resolveOrder(ctx, payment)
	if err != nil {
		return nil, err
	}

	return s.applyPaymentStatus(ctx, order, payment)
}

// CallbackResult tells the HTTP layer where to send the browser.
type CallbackResult struct {
	Succeeded bool
	Order     *models.Order
}

// HandleCallback is the browser-redirect variant of HandleWebhook.
// Failures are reported as a failed result, never as an API error,
// so the handler can redirect to the failure landing page.
func (s *PaymentService) HandleCallback(ctx context.Context, paymentID string) CallbackResult {
	if paymentID == "" {
		return CallbackResult{}
	}

	payment, err := s.gateway.GetCharge(ctx, paymentID)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", paymentID).Msg("callback status fetch failed")
		return CallbackResult{}
	}

	order, err := s.resolveOrder(ctx, payment)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", paymentID).Msg("callback could not resolve order")
		return CallbackResult{}
	}

	updated, err := s.applyPaymentStatus(ctx, order, payment)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", paymentID).Msg("callback status application failed")
		return CallbackResult{Order: order}
	}

	return CallbackResult{
		Succeeded: updated.Paid,
		Order:     updated,
	}
}

func (s *PaymentService) resolveOrder(ctx context.Context, payment *GatewayPayment) (*models.Order, error) {
	var order models.Order

	if ref, ok := payment.Metadata["order_id"]; ok && ref != "" {
		id, err := uuid.Parse(ref)
		if err != nil {
			return nil, apperr.InvalidInput("malformed order reference %q", ref)
		}
		if err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("no order for payment %s", payment.ID)
			}
			return nil, err
		}
		return &order, nil
	}

	if err := s.db.WithContext(ctx).First(&order, "payment_id = ?", payment.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no order for payment %s", payment.ID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *PaymentService) applyPaymentStatus(ctx context.Context, order *models.Order, payment *GatewayPayment) (*models.Order, error) {
	switch payment.Status {
	case PaymentStatusPaid, PaymentStatusAuthorized, PaymentStatusCaptured:
		return s.confirmOrder(ctx, order, payment)

	case PaymentStatusFailed, PaymentStatusDeclined, PaymentStatusCancelled:
		return s.cancelOrder(ctx, order, payment)

	case PaymentStatusInitiated:
		// Still in flight, nothing to apply yet.
		return order, nil

	case PaymentStatusRefunded:
		if order.Status == models.OrderStatusRefunded {
			return order, nil
		}
		if err := s.orders.Transition(ctx, nil, order.ID, models.OrderStatusConfirmed, models.OrderStatusRefunded, map[string]any{
			"paid":           false,
			"payment_status": payment.Status,
		}); err != nil {
			return nil, err
		}
		return s.reload(ctx, order.ID)

	default:
		return nil, apperr.InvalidInput("unknown payment status %q", payment.Status)
	}
}

func (s *PaymentService) confirmOrder(ctx context.Context, order *models.Order, payment *GatewayPayment) (*models.Order, error) {
	if order.Status == models.OrderStatusPending {
		now := time.Now()
		err := s.orders.Transition(ctx, nil, order.ID, models.OrderStatusPending, models.OrderStatusConfirmed, map[string]any{
			"paid":           true,
			"paid_at":        now,
			"payment_id":     payment.ID,
			"payment_status": payment.Status,
		})
		if err != nil && !apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		// A lost conditional update means a concurrent delivery
		// confirmed first; continue into the idempotent shipment path.
	}

	reloaded, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if reloaded.Status == models.OrderStatusConfirmed {
		if _, err := s.shipments.EnsureShipment(ctx, reloaded.ID); err != nil {
			// Lock already released; surface the failure so the
			// gateway redelivers and we retry the courier call.
			return nil, err
		}
		return s.reload(ctx, reloaded.ID)
	}

	return reloaded, nil
}

func (s *PaymentService) cancelOrder(ctx context.Context, order *models.Order, payment *GatewayPayment) (*models.Order, error) {
	if order.Status == models.OrderStatusCancelled {
		return order, nil
	}

	from := order.Status
	if from != models.OrderStatusPending && from != models.OrderStatusConfirmed {
		return nil, apperr.Conflict("cannot cancel order in status %s", from)
	}

	err := s.orders.Transition(ctx, nil, order.ID, from, models.OrderStatusCancelled, map[string]any{
		"paid":           false,
		"payment_status": payment.Status,
	})
	if err != nil && !apperr.IsKind(err, apperr.KindConflict) {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("payment_status", payment.Status).
		Msg("order cancelled by payment status")

	return s.reload(ctx, order.ID)
}

// RefundPayment refunds a paid order at the gateway and marks it refunded.
func (s *PaymentService) RefundPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.reload(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Paid || order.PaymentID == "" {
		return nil, apperr.Conflict("order %s has no captured payment to refund", order.OrderNumber)
	}
	// The status gate runs before the gateway call: refunding the
	// charge for an order that cannot reach refunded would move money
	// with no matching state change.
	if !models.CanTransition(order.Status, models.OrderStatusRefunded) {
		return nil, apperr.Conflict("cannot refund order in status %s", order.Status)
	}

	payment, err := s.gateway.Refund(ctx, order.PaymentID)
	if err != nil {
		return nil, apperr.Upstream(err, "payment gateway refund failed")
	}

	if err := s.orders.Transition(ctx, nil, order.ID, models.OrderStatusConfirmed, models.OrderStatusRefunded, map[string]any{
		"paid":           false,
		"payment_status": payment.Status,
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, orderID)
}

// CancelPayment is the administrative override: the order is marked
// cancelled and unpaid regardless of its current status.
func (s *PaymentService) CancelPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":         models.OrderStatusCancelled,
			"paid":           false,
			"payment_status": PaymentStatusCancelled,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("order not found")
	}

	return s.reload(ctx, orderID)
}

func (s *PaymentService) reload(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	return &order, nil
}
