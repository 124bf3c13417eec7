// Package pricing computes order totals. All arithmetic is done on
// decimals and rounded to currency minor units (2dp, half-up) so the
// same inputs always produce the same totals.
package pricing

import "github.com/shopspring/decimal"

// Quote is the priced breakdown of a cart or order.
type Quote struct {
	Subtotal       float64
	TaxAmount      float64
	ShippingCost   float64
	DiscountAmount float64
	FinalPrice     float64
}

// Round2 rounds to 2 decimal places using round-half-up.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Compute derives tax and final price from a subtotal:
//
//	tax   = round2(subtotal × taxRate)
//	final = max(0, round2(subtotal + tax + shipping − discount))
func Compute(subtotal, shippingCost, discountAmount, taxRate float64) Quote {
	sub := decimal.NewFromFloat(subtotal)
	tax := sub.Mul(decimal.NewFromFloat(taxRate)).Round(2)

	final := sub.Add(tax).
		Add(decimal.NewFromFloat(shippingCost)).
		Sub(decimal.NewFromFloat(discountAmount)).
		Round(2)
	if final.IsNegative() {
		final = decimal.Zero
	}

	subF, _ := sub.Round(2).Float64()
	taxF, _ := tax.Float64()
	finalF, _ := final.Float64()

	return Quote{
		Subtotal:       subF,
		TaxAmount:      taxF,
		ShippingCost:   Round2(shippingCost),
		DiscountAmount: Round2(discountAmount),
		FinalPrice:     finalF,
	}
}

// MinorUnits converts a price to integer minor currency units
// (halalas for SAR), as required by the payment gateway.
func MinorUnits(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
