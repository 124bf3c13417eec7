package models

import "github.com/lib/pq"

// Shipping weight classes used by the zone-based shipping table.
const (
	WeightStandard = "standard"
	WeightBulky    = "bulky"
)

type Product struct {
	BaseModel
	Name        string         `json:"name"`
	Slug        string         `gorm:"uniqueIndex" json:"slug"`
	SKU         string         `gorm:"uniqueIndex" json:"sku"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Stock       int            `json:"stock"`
	Colors      pq.StringArray `gorm:"type:text[]" json:"colors"`
	Sizes       pq.StringArray `gorm:"type:text[]" json:"sizes"`
	WeightClass string         `gorm:"default:standard" json:"weight_class"`
	CoverImage  string         `json:"cover_image"`
	// CourierProductID is assigned when the product is first registered
	// with the shipping provider.
	CourierProductID string `json:"-"`
}

// HasColors reports whether the product requires a color choice.
func (p *Product) HasColors() bool {
	return len(p.Colors) > 0
}

// HasSizes reports whether the product requires a size choice.
func (p *Product) HasSizes() bool {
	return len(p.Sizes) > 0
}
