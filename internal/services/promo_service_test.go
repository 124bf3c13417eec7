package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
)

func seedPromo(t *testing.T, db *gorm.DB, promo models.PromoCode) *models.PromoCode {
	t.Helper()

	if promo.StartDate.IsZero() {
		promo.StartDate = time.Now().Add(-time.Hour)
	}
	if promo.EndDate.IsZero() {
		promo.EndDate = time.Now().Add(24 * time.Hour)
	}
	require.NoError(t, db.Create(&promo).Error)
	return &promo
}

func TestValidatePercentageDiscount(t *testing.T) {
	env := newTestEnv(t)
	seedPromo(t, env.db, models.PromoCode{
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
	})

	validation, err := env.promos.Validate(context.Background(), "save10", 135)
	require.NoError(t, err)
	assert.Equal(t, 13.5, validation.DiscountAmount)
	assert.Equal(t, "SAVE10", validation.Promo.Code)
}

func TestValidateFixedDiscountCappedAtTotal(t *testing.T) {
	env := newTestEnv(t)
	seedPromo(t, env.db, models.PromoCode{
		Code:          "FLAT50",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 50,
		IsActive:      true,
	})

	validation, err := env.promos.Validate(context.Background(), "FLAT50", 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, validation.DiscountAmount)

	validation, err = env.promos.Validate(context.Background(), "FLAT50", 200)
	require.NoError(t, err)
	assert.Equal(t, 50.0, validation.DiscountAmount)
}

func TestValidateRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	maxUses := 5

	seedPromo(t, env.db, models.PromoCode{
		Code:          "INACTIVE",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      false,
	})
	seedPromo(t, env.db, models.PromoCode{
		Code:          "EXPIRED",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
		StartDate:     time.Now().Add(-48 * time.Hour),
		EndDate:       time.Now().Add(-24 * time.Hour),
	})
	seedPromo(t, env.db, models.PromoCode{
		Code:          "FUTURE",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
		StartDate:     time.Now().Add(24 * time.Hour),
		EndDate:       time.Now().Add(48 * time.Hour),
	})
	seedPromo(t, env.db, models.PromoCode{
		Code:          "USEDUP",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
		MaxUses:       &maxUses,
		UsedCount:     5,
	})
	seedPromo(t, env.db, models.PromoCode{
		Code:              "BIGSPEND",
		DiscountType:      models.DiscountPercentage,
		DiscountValue:     10,
		IsActive:          true,
		MinPurchaseAmount: 500,
	})

	_, err := env.promos.Validate(ctx, "NOSUCHCODE", 100)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	for _, code := range []string{"INACTIVE", "EXPIRED", "FUTURE", "USEDUP"} {
		_, err := env.promos.Validate(ctx, code, 100)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict), code)
	}

	_, err = env.promos.Validate(ctx, "BIGSPEND", 100)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	_, err = env.promos.Validate(ctx, "   ", 100)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}

func TestConsumeUseStopsAtCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	maxUses := 2
	promo := seedPromo(t, env.db, models.PromoCode{
		Code:          "LIMITED",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 5,
		IsActive:      true,
		MaxUses:       &maxUses,
	})

	require.NoError(t, env.promos.ConsumeUse(ctx, nil, promo.ID))
	require.NoError(t, env.promos.ConsumeUse(ctx, nil, promo.ID))

	err := env.promos.ConsumeUse(ctx, nil, promo.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	var reloaded models.PromoCode
	require.NoError(t, env.db.First(&reloaded, "id = ?", promo.ID).Error)
	assert.Equal(t, 2, reloaded.UsedCount)
}

func TestConsumeUseUnlimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	promo := seedPromo(t, env.db, models.PromoCode{
		Code:          "FOREVER",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 5,
		IsActive:      true,
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, env.promos.ConsumeUse(ctx, nil, promo.ID))
	}
}

func TestCreatePromo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	promo, err := env.promos.Create(ctx, CreatePromoInput{
		Code:          "  welcome  ",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 15,
		StartDate:     time.Now(),
		EndDate:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", promo.Code)
	assert.True(t, promo.IsActive)

	_, err = env.promos.Create(ctx, CreatePromoInput{
		Code:          "welcome",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 15,
		StartDate:     time.Now(),
		EndDate:       time.Now().Add(time.Hour),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestCreatePromoValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	cases := []CreatePromoInput{
		{Code: "", DiscountType: models.DiscountFixed, DiscountValue: 5, StartDate: now, EndDate: now.Add(time.Hour)},
		{Code: "A", DiscountType: "bogus", DiscountValue: 5, StartDate: now, EndDate: now.Add(time.Hour)},
		{Code: "B", DiscountType: models.DiscountFixed, DiscountValue: 0, StartDate: now, EndDate: now.Add(time.Hour)},
		{Code: "C", DiscountType: models.DiscountPercentage, DiscountValue: 150, StartDate: now, EndDate: now.Add(time.Hour)},
		{Code: "D", DiscountType: models.DiscountFixed, DiscountValue: 5, StartDate: now.Add(time.Hour), EndDate: now},
	}
	for _, input := range cases {
		_, err := env.promos.Create(ctx, input)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), input.Code)
	}
}

func TestUpdateAndDeletePromo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	promo := seedPromo(t, env.db, models.PromoCode{
		Code:          "EDITME",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
	})

	inactive := false
	updated, err := env.promos.Update(ctx, promo.ID, CreatePromoInput{
		DiscountValue: 20,
		IsActive:      &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.DiscountValue)
	assert.False(t, updated.IsActive)

	require.NoError(t, env.promos.Delete(ctx, promo.ID))

	err = env.promos.Delete(ctx, promo.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = env.promos.Get(ctx, promo.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListPromos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	active := true

	seedPromo(t, env.db, models.PromoCode{Code: "SUMMER1", DiscountType: models.DiscountFixed, DiscountValue: 5, IsActive: true})
	seedPromo(t, env.db, models.PromoCode{Code: "SUMMER2", DiscountType: models.DiscountFixed, DiscountValue: 5, IsActive: false})
	seedPromo(t, env.db, models.PromoCode{Code: "WINTER1", DiscountType: models.DiscountFixed, DiscountValue: 5, IsActive: true})

	promos, total, err := env.promos.List(ctx, PromoFilter{Code: "summer", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, promos, 2)

	_, total, err = env.promos.List(ctx, PromoFilter{IsActive: &active, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
