package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// Payment methods.
const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodMada       = "mada"
)

// orderTransitions is the allowed status transition table.
var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransition reports whether an order status change is legal.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ShippingAddress is snapshotted onto the order at creation time.
type ShippingAddress struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

// Order is an immutable snapshot of a cart at checkout time. Item
// prices are copied by value so later product price changes cannot
// affect it.
type Order struct {
	BaseModel
	UserID      uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User        *User       `json:"user,omitempty"`
	OrderNumber string      `gorm:"uniqueIndex" json:"order_number"`
	Status      string      `gorm:"default:pending" json:"status"`
	Items       []OrderItem `json:"items"`

	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"tax_amount"`
	ShippingCost   float64 `json:"shipping_cost"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalPrice     float64 `json:"final_price"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	PaymentMethod   string          `gorm:"default:cash" json:"payment_method"`
	Notes           string          `json:"notes"`

	PromoCodeID *uuid.UUID `gorm:"type:uuid" json:"promo_code_id,omitempty"`
	PromoCode   string     `json:"promo_code,omitempty"`

	Paid          bool       `json:"paid"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaymentID     string     `gorm:"index" json:"payment_id,omitempty"`
	PaymentStatus string     `json:"payment_status,omitempty"`

	// ShipmentCreating guards courier order creation so concurrent
	// webhook deliveries cannot both dispatch a shipment.
	ShipmentCreating bool    `gorm:"default:false" json:"-"`
	TrackingNumber   *string `gorm:"uniqueIndex" json:"tracking_number,omitempty"`
	TrackingURL      string  `json:"tracking_url,omitempty"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID      `gorm:"type:uuid;index" json:"order_id"`
	ProductID uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Product   *Product       `json:"product,omitempty"`
	Quantity  int            `json:"quantity"`
	Price     float64        `json:"price"`
	Colors    pq.StringArray `gorm:"type:text[]" json:"colors"`
	Sizes     pq.StringArray `gorm:"type:text[]" json:"sizes"`
}
