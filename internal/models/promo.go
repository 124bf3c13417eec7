package models

import "time"

// Promo discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type PromoCode struct {
	BaseModel
	Code              string    `gorm:"uniqueIndex" json:"code"`
	DescriptionAr     string    `json:"description_ar"`
	DescriptionEn     string    `json:"description_en"`
	DiscountType      string    `json:"discount_type"`
	DiscountValue     float64   `json:"discount_value"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	MaxUses           *int      `json:"max_uses,omitempty"`
	UsedCount         int       `json:"used_count"`
	MinPurchaseAmount float64   `json:"min_purchase_amount"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
}

// IsValid reports whether the code can be applied right now.
func (p *PromoCode) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	if p.MaxUses != nil && p.UsedCount >= *p.MaxUses {
		return false
	}
	return true
}
