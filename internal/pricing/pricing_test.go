package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2HalfUp(t *testing.T) {
	assert.Equal(t, 13.5, Round2(13.495))
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, 10.0, Round2(10))
	assert.Equal(t, -0.13, Round2(-0.125))
}

func TestComputeStandardOrder(t *testing.T) {
	q := Compute(100, 20, 0, 0.15)

	assert.Equal(t, 100.0, q.Subtotal)
	assert.Equal(t, 15.0, q.TaxAmount)
	assert.Equal(t, 20.0, q.ShippingCost)
	assert.Equal(t, 0.0, q.DiscountAmount)
	assert.Equal(t, 135.0, q.FinalPrice)
}

func TestComputeWithDiscount(t *testing.T) {
	q := Compute(100, 20, 13.5, 0.15)
	assert.Equal(t, 121.5, q.FinalPrice)
}

func TestComputeFinalPriceNeverNegative(t *testing.T) {
	q := Compute(10, 0, 500, 0.15)
	assert.Equal(t, 0.0, q.FinalPrice)
}

func TestComputeDeterministicForSameInputs(t *testing.T) {
	a := Compute(33.33, 25, 5.17, 0.15)
	b := Compute(33.33, 25, 5.17, 0.15)
	assert.Equal(t, a, b)
}

func TestComputeRoundsTaxBeforeSumming(t *testing.T) {
	// 15% of 33.33 is 4.9995, rounded to 5.00 before the final sum.
	q := Compute(33.33, 0, 0, 0.15)
	assert.Equal(t, 5.0, q.TaxAmount)
	assert.Equal(t, 38.33, q.FinalPrice)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(13500), MinorUnits(135))
	assert.Equal(t, int64(12150), MinorUnits(121.50))
	assert.Equal(t, int64(10), MinorUnits(0.1))
	assert.Equal(t, int64(2999), MinorUnits(29.99))
}
