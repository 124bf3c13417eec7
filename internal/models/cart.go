package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Cart statuses.
const (
	CartStatusActive    = "active"
	CartStatusOrdered   = "ordered"
	CartStatusAbandoned = "abandoned"
)

// Cart belongs to exactly one principal: a registered user or an
// anonymous session. Guest carts carry an advisory expiry.
type Cart struct {
	BaseModel
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	SessionID  *string    `gorm:"index" json:"session_id,omitempty"`
	Items      []CartItem `json:"items"`
	TotalPrice float64    `json:"total_price"`
	Status     string     `gorm:"default:active" json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type CartItem struct {
	BaseModel
	CartID    uuid.UUID      `gorm:"type:uuid;index" json:"cart_id"`
	ProductID uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Product   *Product       `json:"product,omitempty"`
	Quantity  int            `json:"quantity"`
	Price     float64        `json:"price"`
	Colors    pq.StringArray `gorm:"type:text[]" json:"colors"`
	Sizes     pq.StringArray `gorm:"type:text[]" json:"sizes"`
}

// VariantKey canonicalizes a (product, colors, sizes) combination so
// re-adding the same combination merges into the existing line.
func VariantKey(productID uuid.UUID, colors, sizes []string) string {
	c := append([]string(nil), colors...)
	s := append([]string(nil), sizes...)
	sort.Strings(c)
	sort.Strings(s)
	return productID.String() + "|" + strings.Join(c, ",") + "|" + strings.Join(s, ",")
}

// Key returns the line's variant identity.
func (i *CartItem) Key() string {
	return VariantKey(i.ProductID, i.Colors, i.Sizes)
}

// RecomputeTotal re-derives TotalPrice from the lines.
func (c *Cart) RecomputeTotal() {
	var total float64
	for _, item := range c.Items {
		total += float64(item.Quantity) * item.Price
	}
	c.TotalPrice = total
}
