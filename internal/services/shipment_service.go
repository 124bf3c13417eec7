package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/pricing"
)

// ShipmentService dispatches courier shipments for paid orders. It
// guarantees at most one shipment per order: creation is guarded by
// the order's shipment_creating flag, acquired with a conditional
// update that only one concurrent caller can win.
type ShipmentService struct {
	db      *gorm.DB
	courier Courier
	logger  zerolog.Logger

	pickupLocationID string
	deliveryOptionID string
	transitTime      time.Duration
	taxRate          float64
}

// NewShipmentService constructs a ShipmentService.
func NewShipmentService(db *gorm.DB, courier Courier, logger zerolog.Logger, pickupLocationID, deliveryOptionID string, transitTime time.Duration, taxRate float64) *ShipmentService {
	return &ShipmentService{
		db:               db,
		courier:          courier,
		logger:           logger.With().Str("component", "shipment").Logger(),
		pickupLocationID: pickupLocationID,
		deliveryOptionID: deliveryOptionID,
		transitTime:      transitTime,
		taxRate:          taxRate,
	}
}

// EnsureShipment creates the courier shipment for an order exactly
// once. It is safe to call from both order creation and webhook
// confirmation; whichever trigger wins the lock performs the courier
// call, every other invocation is a no-op. A courier failure releases
// the lock and leaves the order eligible for retry.
func (s *ShipmentService) EnsureShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
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

	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		return s.findByOrder(ctx, orderID)
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND shipment_creating = ? AND (tracking_number IS NULL OR tracking_number = '')", orderID, false).
		Update("shipment_creating", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another invocation owns the lock or already shipped.
		s.logger.Info().Str("order_id", orderID.String()).Msg("shipment creation already in progress, skipping")
		return nil, nil
	}
	defer func() {
		if err := s.db.Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("shipment_creating", false).Error; err != nil {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to release shipment lock")
		}
	}()

	dispatchable := order.Status == models.OrderStatusConfirmed ||
		(order.Status == models.OrderStatusPending && order.PaymentMethod == models.PaymentMethodCash)
	if !dispatchable {
		return nil, apperr.Conflict("order %s is not ready for shipment", order.OrderNumber)
	}

	s.registerProducts(ctx, &order)

	result, err := s.courier.CreateOrder(ctx, s.buildCourierRequest(&order))
	if err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("courier order creation failed")
		return nil, apperr.Upstream(err, "failed to create courier shipment")
	}

	estimated := time.Now().Add(s.transitTime)
	if result.DeliveryDate != "" {
		if parsed, err := time.Parse("2006-01-02", result.DeliveryDate); err == nil {
			estimated = parsed
		}
	}

	shipment := models.Shipment{
		OrderID:           order.ID,
		UserID:            order.UserID,
		Address:           formatAddress(order.ShippingAddress),
		Status:            models.ShipmentStatusPending,
		Carrier:           "oto",
		TrackingNumber:    result.TrackingNumber,
		TrackingURL:       result.TrackingURL,
		OTOOrderID:        result.OTOOrderID,
		EstimatedDelivery: &estimated,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shipment).Error; err != nil {
			return err
		}

		// Conditional write: the status loaded before the lock may be
		// stale, so only an order still awaiting dispatch moves to
		// shipped. Zero rows means a cancellation landed in between
		// and the whole transaction rolls back.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", order.ID,
				[]string{models.OrderStatusPending, models.OrderStatusConfirmed}).
			Updates(map[string]any{
				"tracking_number": result.TrackingNumber,
				"tracking_url":    result.TrackingURL,
				"status":          models.OrderStatusShipped,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("order %s changed state during dispatch", order.OrderNumber)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("shipment discarded")
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("tracking_number", result.TrackingNumber).
		Msg("shipment created")

	return &shipment, nil
}

// registerProducts makes the order's products known to the courier
// before the order is placed. Each product registers once; the courier
// id is recorded so later dispatches skip it. Registration failures
// are logged and do not block the shipment.
func (s *ShipmentService) registerProducts(ctx context.Context, order *models.Order) {
	for _, line := range order.Items {
		p := line.Product
		if p == nil || p.CourierProductID != "" {
			continue
		}

		id, err := s.courier.CreateProduct(ctx, CourierProductRequest{
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price,
			TaxAmount: pricing.Round2(p.Price * s.taxRate),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("sku", p.SKU).Msg("courier product registration failed")
			continue
		}

		if err := s.db.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", p.ID).
			Update("courier_product_id", id).Error; err != nil {
			s.logger.Error().Err(err).Str("sku", p.SKU).Msg("failed to record courier product id")
		}
	}
}

func (s *ShipmentService) buildCourierRequest(order *models.Order) CourierOrderRequest {
	items := make([]CourierItem, 0, len(order.Items))
	boxes := 0
	weight := 0.0
	for _, line := range order.Items {
		item := CourierItem{
			Price:    line.Price,
			Quantity: line.Quantity,
		}
		if line.Product != nil {
			item.Name = line.Product.Name
			item.SKU = line.Product.SKU
			if line.Product.WeightClass == models.WeightBulky {
				weight += 10 * float64(line.Quantity)
			} else {
				weight += 0.5 * float64(line.Quantity)
			}
		}
		items = append(items, item)
		boxes += line.Quantity
	}

	customer := CourierCustomer{
		Name:       strings.TrimSpace(order.ShippingAddress.FirstName + " " + order.ShippingAddress.LastName),
		Phone:      order.ShippingAddress.Phone,
		Email:      order.ShippingAddress.Email,
		Country:    order.ShippingAddress.Country,
		City:       order.ShippingAddress.City,
		Address:    order.ShippingAddress.Address,
		PostalCode: order.ShippingAddress.PostalCode,
	}

	return CourierOrderRequest{
		OrderID:          order.OrderNumber,
		PickupLocationID: s.pickupLocationID,
		DeliveryOptionID: s.deliveryOptionID,
		Customer:         customer,
		Items:            items,
		Amount:           order.FinalPrice,
		Currency:         "SAR",
		PackageCount:     boxes,
		PackageWeight:    weight,
	}
}

// UpdateStatus applies a courier status notification to the shipment
// and, for deliveries, to the order.
func (s *ShipmentService) UpdateStatus(ctx context.Context, trackingNumber, status string) (*models.Shipment, error) {
	switch status {
	case models.ShipmentStatusPending, models.ShipmentStatusShipped,
		models.ShipmentStatusDelivered, models.ShipmentStatusCancelled:
	default:
		return nil, apperr.InvalidInput("unknown shipment status %q", status)
	}

	var shipment models.Shipment
	if err := s.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shipment not found")
		}
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Shipment{}).
			Where("id = ?", shipment.ID).
			Update("status", status).Error; err != nil {
			return err
		}
		shipment.Status = status

		if status != models.ShipmentStatusDelivered {
			return nil
		}

		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", shipment.OrderID, models.OrderStatusShipped).
			Updates(map[string]any{
				"status":       models.OrderStatusDelivered,
				"delivered_at": now,
			})
		return res.Error
	})
	if err != nil {
		return nil, err
	}

	return &shipment, nil
}

// ListUserShipments returns the user's shipments, newest first.
func (s *ShipmentService) ListUserShipments(ctx context.Context, userID uuid.UUID) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// GetByTracking fetches one shipment by courier tracking number.
func (s *ShipmentService) GetByTracking(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.WithContext(ctx).
		Preload("Order").
		Where("tracking_number = ?", trackingNumber).
		First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shipment not found")
		}
		return nil, err
	}
	return &shipment, nil
}

func (s *ShipmentService) findByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

func formatAddress(a models.ShippingAddress) string {
	parts := []string{a.Address, a.City, a.Country}
	if a.PostalCode != "" {
		parts = append(parts, a.PostalCode)
	}
	return strings.Join(parts, ", ")
}
