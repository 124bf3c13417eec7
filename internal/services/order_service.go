package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/pricing"
)

// OrderService converts carts into immutable order snapshots and owns
// the order status state machine.
type OrderService struct {
	db        *gorm.DB
	promo     *PromoService
	shipments *ShipmentService
	logger    zerolog.Logger

	taxRate   float64
	numPrefix string
	orderSeq  atomic.Uint64
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, promo *PromoService, shipments *ShipmentService, logger zerolog.Logger, taxRate float64, numPrefix string) *OrderService {
	return &OrderService{
		db:        db,
		promo:     promo,
		shipments: shipments,
		logger:    logger.With().Str("component", "orders").Logger(),
		taxRate:   taxRate,
		numPrefix: numPrefix,
	}
}

// CreateOrderInput carries checkout parameters.
type CreateOrderInput struct {
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	Notes           string
	PromoCode       string
	// ShippingCost overrides the zone table when set.
	ShippingCost *float64
}

// CreateOrder snapshots the user's active cart into an order. Stock
// decrements, promo consumption, order persistence and cart retirement
// all commit in one transaction, so a failed line leaves nothing
// half-reserved. Cash orders get a best-effort shipment afterwards;
// gateway orders ship from the payment webhook.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if input.ShippingAddress.City == "" || input.ShippingAddress.Address == "" {
		return nil, apperr.InvalidInput("shipping address is incomplete")
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = models.PaymentMethodCash
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("user_id = ? AND status = ?", userID, models.CartStatusActive).
			Preload("Items").
			Preload("Items.Product").
			First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Conflict("cart is empty")
			}
			return err
		}
		if len(cart.Items) == 0 {
			return apperr.Conflict("cart is empty")
		}

		var subtotal float64
		hasBulky := false
		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			if line.Product == nil {
				return apperr.NotFound("product %s no longer exists", line.ProductID)
			}

			// Conditional decrement: the guard rejects overselling
			// under concurrent checkouts, and the surrounding
			// transaction rolls earlier lines back on failure.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				Update("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var current models.Product
				if err := tx.Select("stock", "name").First(&current, "id = ?", line.ProductID).Error; err != nil {
					return err
				}
				return apperr.Conflict("insufficient stock for %s: %d available", current.Name, current.Stock)
			}

			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Price,
				Colors:    line.Colors,
				Sizes:     line.Sizes,
			})
			subtotal += float64(line.Quantity) * line.Price
			if line.Product.WeightClass == models.WeightBulky {
				hasBulky = true
			}
		}

		shippingCost, err := s.resolveShipping(input, subtotal, hasBulky)
		if err != nil {
			return err
		}

		base := pricing.Compute(subtotal, shippingCost, 0, s.taxRate)

		var discount float64
		var promoID *uuid.UUID
		var promoCode string
		if input.PromoCode != "" {
			validation, err := s.promo.Validate(ctx, input.PromoCode, base.FinalPrice)
			if err != nil {
				return err
			}
			if err := s.promo.ConsumeUse(ctx, tx, validation.Promo.ID); err != nil {
				return err
			}
			discount = validation.DiscountAmount
			promoID = &validation.Promo.ID
			promoCode = validation.Promo.Code
		}

		quote := pricing.Compute(subtotal, shippingCost, discount, s.taxRate)

		order = models.Order{
			UserID:          userID,
			OrderNumber:     s.nextOrderNumber(),
			Status:          models.OrderStatusPending,
			Items:           items,
			Subtotal:        quote.Subtotal,
			TaxAmount:       quote.TaxAmount,
			ShippingCost:    quote.ShippingCost,
			DiscountAmount:  quote.DiscountAmount,
			FinalPrice:      quote.FinalPrice,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			Notes:           input.Notes,
			PromoCodeID:     promoID,
			PromoCode:       promoCode,
		}

		if err := tx.Create(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("order number collision for %s", order.OrderNumber)
			}
			return err
		}

		// The cart is retired, not deleted: its lines stay behind as
		// the record of what the order was built from.
		return tx.Model(&models.Cart{}).
			Where("id = ?", cart.ID).
			Update("status", models.CartStatusOrdered).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("user_id", userID.String()).
		Float64("final_price", order.FinalPrice).
		Msg("order created")

	// Cash on delivery ships immediately, best effort: a courier
	// failure is logged and the order still succeeds.
	if order.PaymentMethod == models.PaymentMethodCash {
		if _, err := s.shipments.EnsureShipment(ctx, order.ID); err != nil {
			s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("best-effort shipment creation failed")
		}
	}

	return &order, nil
}

func (s *OrderService) resolveShipping(input CreateOrderInput, subtotal float64, hasBulky bool) (float64, error) {
	if input.ShippingCost != nil {
		if *input.ShippingCost < 0 {
			return 0, apperr.InvalidInput("shipping cost cannot be negative")
		}
		return *input.ShippingCost, nil
	}

	cost, err := pricing.ShippingCost(input.ShippingAddress.City, subtotal, hasBulky)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownZone) {
			return 0, apperr.InvalidInput("no shipping zone for city %q", input.ShippingAddress.City)
		}
		return 0, err
	}
	return cost, nil
}

// nextOrderNumber combines millisecond timestamp granularity with a
// running per-process sequence. A residual collision surfaces as a
// unique index violation, reported as Conflict rather than retried.
func (s *OrderService) nextOrderNumber() string {
	seq := s.orderSeq.Add(1) % 10000
	return fmt.Sprintf("%s-%d-%04d", s.numPrefix, time.Now().UnixMilli(), seq)
}

// Transition moves an order to a new status, enforcing the state
// machine, and applies extra column updates atomically with it.
func (s *OrderService) Transition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, from, to string, extra map[string]any) error {
	if !models.CanTransition(from, to) {
		return apperr.Conflict("illegal order transition %s -> %s", from, to)
	}

	db := s.db
	if tx != nil {
		db = tx
	}

	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("order is no longer %s", from)
	}
	return nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// GetOrder returns a single order owned by the user.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	return &order, nil
}

// ListAllOrders returns every order, for admins.
func (s *OrderService) ListAllOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Preload("User").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// GetOrderAdmin returns any order by id, for admins.
func (s *OrderService) GetOrderAdmin(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("User").
		First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	return &order, nil
}

// MarkDelivered records external delivery confirmation.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	now := time.Now()
	if err := s.Transition(ctx, nil, orderID, models.OrderStatusShipped, models.OrderStatusDelivered, map[string]any{
		"delivered_at": now,
	}); err != nil {
		return nil, err
	}
	return s.GetOrderAdmin(ctx, orderID)
}
