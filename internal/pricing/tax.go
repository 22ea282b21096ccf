package pricing

import (
	"github.com/shopspring/decimal"
)

// TaxFor applies the tax rate to the subtotal and rounds half-up to the paisa.
// Shipping is not taxed.
func (p Policy) TaxFor(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(p.TaxRate).Round(0).IntPart()
}

// ReferralBonus returns the coins credited to a referral coupon owner for an
// order with the given subtotal. Fractional coins are dropped.
func (p Policy) ReferralBonus(subtotal int64) int64 {
	rupees := decimal.NewFromInt(subtotal).Div(decimal.NewFromInt(100))
	return rupees.Mul(p.ReferralBonusRate).Floor().IntPart()
}
