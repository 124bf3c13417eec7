package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
	"github.com/example/sooq/internal/pricing"
)

// PromoService validates promo codes and computes discount amounts.
// Usage counting happens in ConsumeUse, called by the order factory
// when an order commits, never during validation.
type PromoService struct {
	db *gorm.DB
}

// NewPromoService constructs a PromoService.
func NewPromoService(db *gorm.DB) *PromoService {
	return &PromoService{db: db}
}

// PromoValidation is the outcome of a successful validation.
type PromoValidation struct {
	Promo          *models.PromoCode
	DiscountAmount float64
}

// Validate checks a code against an order total and computes the
// discount. The code is canonicalized to upper case. A fixed discount
// never exceeds the total.
func (s *PromoService) Validate(ctx context.Context, code string, totalAmount float64) (*PromoValidation, error) {
	canonical := strings.ToUpper(strings.TrimSpace(code))
	if canonical == "" {
		return nil, apperr.InvalidInput("promo code is required")
	}

	var promo models.PromoCode
	if err := s.db.WithContext(ctx).Where("code = ?", canonical).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("promo code not found")
		}
		return nil, err
	}

	now := time.Now()
	switch {
	case !promo.IsActive:
		return nil, apperr.Conflict("promo code is not active")
	case now.Before(promo.StartDate):
		return nil, apperr.Conflict("promo code is not yet valid")
	case now.After(promo.EndDate):
		return nil, apperr.Conflict("promo code has expired")
	case promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses:
		return nil, apperr.Conflict("promo code usage limit reached")
	}

	if totalAmount < promo.MinPurchaseAmount {
		return nil, apperr.InvalidInput("order total %.2f is below the minimum purchase amount %.2f", totalAmount, promo.MinPurchaseAmount)
	}

	var discount float64
	switch promo.DiscountType {
	case models.DiscountPercentage:
		discount = pricing.Round2(totalAmount * promo.DiscountValue / 100)
	case models.DiscountFixed:
		discount = promo.DiscountValue
		if discount > totalAmount {
			discount = totalAmount
		}
		discount = pricing.Round2(discount)
	default:
		return nil, apperr.Internal(nil, "unknown discount type")
	}

	return &PromoValidation{Promo: &promo, DiscountAmount: discount}, nil
}

// ConsumeUse atomically increments the code's usage counter, guarded
// by the cap so concurrent orders cannot exceed it.
func (s *PromoService) ConsumeUse(ctx context.Context, tx *gorm.DB, promoID uuid.UUID) error {
	db := s.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", promoID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("promo code usage limit reached")
	}
	return nil
}

// CreatePromoInput carries admin-supplied promo fields.
type CreatePromoInput struct {
	Code              string
	DescriptionAr     string
	DescriptionEn     string
	DiscountType      string
	DiscountValue     float64
	StartDate         time.Time
	EndDate           time.Time
	MaxUses           *int
	MinPurchaseAmount float64
	IsActive          *bool
}

func validatePromoFields(discountType string, discountValue float64, start, end time.Time) error {
	if discountType != models.DiscountPercentage && discountType != models.DiscountFixed {
		return apperr.InvalidInput("discount type must be percentage or fixed")
	}
	if discountValue <= 0 {
		return apperr.InvalidInput("discount value must be positive")
	}
	if discountType == models.DiscountPercentage && discountValue > 100 {
		return apperr.InvalidInput("percentage discount cannot exceed 100%%")
	}
	if !end.After(start) {
		return apperr.InvalidInput("end date must be after start date")
	}
	return nil
}

// Create adds a promo code.
func (s *PromoService) Create(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, apperr.InvalidInput("promo code is required")
	}
	if err := validatePromoFields(input.DiscountType, input.DiscountValue, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	var existing models.PromoCode
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("promo code already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	promo := models.PromoCode{
		Code:              code,
		DescriptionAr:     input.DescriptionAr,
		DescriptionEn:     input.DescriptionEn,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		MaxUses:           input.MaxUses,
		MinPurchaseAmount: input.MinPurchaseAmount,
		IsActive:          active,
	}
	if err := s.db.WithContext(ctx).Create(&promo).Error; err != nil {
		return nil, err
	}

	return &promo, nil
}

// Update modifies an existing promo code with the same validations as Create.
func (s *PromoService) Update(ctx context.Context, id uuid.UUID, input CreatePromoInput) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := s.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("promo code not found")
		}
		return nil, err
	}

	if input.Code != "" {
		code := strings.ToUpper(strings.TrimSpace(input.Code))
		var dup models.PromoCode
		err := s.db.WithContext(ctx).Where("code = ? AND id <> ?", code, id).First(&dup).Error
		if err == nil {
			return nil, apperr.Conflict("promo code already exists")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		promo.Code = code
	}

	if input.DiscountType != "" {
		promo.DiscountType = input.DiscountType
	}
	if input.DiscountValue != 0 {
		promo.DiscountValue = input.DiscountValue
	}
	if !input.StartDate.IsZero() {
		promo.StartDate = input.StartDate
	}
	if !input.EndDate.IsZero() {
		promo.EndDate = input.EndDate
	}
	if input.MaxUses != nil {
		promo.MaxUses = input.MaxUses
	}
	if input.MinPurchaseAmount != 0 {
		promo.MinPurchaseAmount = input.MinPurchaseAmount
	}
	if input.IsActive != nil {
		promo.IsActive = *input.IsActive
	}
	if input.DescriptionAr != "" {
		promo.DescriptionAr = input.DescriptionAr
	}
	if input.DescriptionEn != "" {
		promo.DescriptionEn = input.DescriptionEn
	}

	if err := validatePromoFields(promo.DiscountType, promo.DiscountValue, promo.StartDate, promo.EndDate); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// Delete removes a promo code.
func (s *PromoService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.PromoCode{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("promo code not found")
	}
	return nil
}

// Get fetches one promo code by id.
func (s *PromoService) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := s.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("promo code not found")
		}
		return nil, err
	}
	return &promo, nil
}

// PromoFilter narrows List results.
type PromoFilter struct {
	Code     string
	IsActive *bool
	Limit    int
	Offset   int
}

// List returns promo codes matching the filter plus the total count.
func (s *PromoService) List(ctx context.Context, filter PromoFilter) ([]models.PromoCode, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PromoCode{})
	if filter.Code != "" {
		query = query.Where("code LIKE ?", "%"+strings.ToUpper(filter.Code)+"%")
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var promos []models.PromoCode
	if err := query.Order("created_at desc").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&promos).Error; err != nil {
		return nil, 0, err
	}

	return promos, total, nil
}
