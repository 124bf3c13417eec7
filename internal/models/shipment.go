package models

import (
	"time"

	"github.com/google/uuid"
)

// Shipment statuses.
const (
	ShipmentStatusPending   = "pending"
	ShipmentStatusShipped   = "shipped"
	ShipmentStatusDelivered = "delivered"
	ShipmentStatusCancelled = "cancelled"
)

type Shipment struct {
	BaseModel
	OrderID           uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	Order             *Order     `json:"order,omitempty"`
	UserID            uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Address           string     `json:"address"`
	Status            string     `gorm:"default:pending" json:"status"`
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `gorm:"uniqueIndex" json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url"`
	OTOOrderID        string     `json:"oto_order_id,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}
