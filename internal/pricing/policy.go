// Package pricing computes order totals from priced line items and discount
// inputs. Everything here is pure: the same Input always yields the same
// Breakdown, so the cart display and the amount charged at checkout agree.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Policy holds the store-wide pricing constants. Amounts are paise.
type Policy struct {
	// FreeShippingThreshold: subtotals strictly above this ship free.
	FreeShippingThreshold int64

	// FlatShippingFee is charged when the subtotal does not clear the threshold.
	FlatShippingFee int64

	// TaxRate is applied to the subtotal, e.g. 0.18 for 18% GST.
	TaxRate decimal.Decimal

	// ReferralBonusRate is the share of a referred order's subtotal credited
	// to the referral coupon owner, in coins.
	ReferralBonusRate decimal.Decimal
}

// DefaultPolicy returns the storefront defaults: free shipping above ₹999,
// ₹99 flat fee otherwise, 18% tax and a 5% referral bonus.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: 99900,
		FlatShippingFee:       9900,
		TaxRate:               decimal.RequireFromString("0.18"),
		ReferralBonusRate:     decimal.RequireFromString("0.05"),
	}
}

// NewPolicy builds a policy from float configuration values.
func NewPolicy(freeShippingThreshold, flatShippingFee int64, taxRate, referralBonusRate float64) Policy {
	return Policy{
		FreeShippingThreshold: freeShippingThreshold,
		FlatShippingFee:       flatShippingFee,
		TaxRate:               decimal.NewFromFloat(taxRate),
		ReferralBonusRate:     decimal.NewFromFloat(referralBonusRate),
	}
}
