package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/sooq/internal/services"
	"github.com/example/sooq/internal/utils"
)

// PromoHandler manages promo code endpoints.
type PromoHandler struct {
	promos *services.PromoService
}

// NewPromoHandler constructs a PromoHandler.
func NewPromoHandler(promos *services.PromoService) *PromoHandler {
	return &PromoHandler{promos: promos}
}

type validatePromoRequest struct {
	Code        string  `json:"code"`
	TotalAmount float64 `json:"total_amount"`
}

// Validate checks a promo code against an order total.
func (h *PromoHandler) Validate(c *fiber.Ctx) error {
	var req validatePromoRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.promos.Validate(c.Context(), req.Code, req.TotalAmount)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"code":            result.Promo.Code,
		"discount_type":   result.Promo.DiscountType,
		"discount_amount": result.DiscountAmount,
	})
}

type promoRequest struct {
	Code              string  `json:"code"`
	DescriptionAr     string  `json:"description_ar"`
	DescriptionEn     string  `json:"description_en"`
	DiscountType      string  `json:"discount_type"`
	DiscountValue     float64 `json:"discount_value"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	MaxUses           *int    `json:"max_uses"`
	MinPurchaseAmount float64 `json:"min_purchase_amount"`
	IsActive          *bool   `json:"is_active"`
}

func (r promoRequest) toInput() (services.CreatePromoInput, error) {
	input := services.CreatePromoInput{
		Code:              r.Code,
		DescriptionAr:     r.DescriptionAr,
		DescriptionEn:     r.DescriptionEn,
		DiscountType:      r.DiscountType,
		DiscountValue:     r.DiscountValue,
		MaxUses:           r.MaxUses,
		MinPurchaseAmount: r.MinPurchaseAmount,
		IsActive:          r.IsActive,
	}

	if r.StartDate != "" {
		start, err := time.Parse(time.RFC3339, r.StartDate)
		if err != nil {
			return input, fiber.NewError(fiber.StatusBadRequest, "invalid start date")
		}
		input.StartDate = start
	}
	if r.EndDate != "" {
		end, err := time.Parse(time.RFC3339, r.EndDate)
		if err != nil {
			return input, fiber.NewError(fiber.StatusBadRequest, "invalid end date")
		}
		input.EndDate = end
	}

	return input, nil
}

// Create adds a promo code, admin only.
func (h *PromoHandler) Create(c *fiber.Ctx) error {
	var req promoRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, err := req.toInput()
	if err != nil {
		return err
	}

	promo, err := h.promos.Create(c.Context(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "promo_code": promo})
}

// Update modifies a promo code, admin only.
func (h *PromoHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req promoRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, err := req.toInput()
	if err != nil {
		return err
	}

	promo, err := h.promos.Update(c.Context(), id, input)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "promo_code": promo})
}

// Delete removes a promo code, admin only.
func (h *PromoHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.promos.Delete(c.Context(), id); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// Get returns one promo code, admin only.
func (h *PromoHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	promo, err := h.promos.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "promo_code": promo})
}

// List returns promo codes with filters, admin only.
func (h *PromoHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	filter := services.PromoFilter{
		Code:   c.Query("code"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if active := c.Query("is_active"); active != "" {
		b := active == "true"
		filter.IsActive = &b
	}

	promos, total, err := h.promos.List(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"promo_codes": promos,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
