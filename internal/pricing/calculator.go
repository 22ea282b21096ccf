package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/kirana/internal/domain"
)

// LineItem is a priced cart or order line.
type LineItem struct {
	UnitPrice int64
	Quantity  int
}

// Input is everything the calculator needs. Coupon must already have passed
// validation; pass nil when no coupon applies.
type Input struct {
	Items       []LineItem
	Coupon      *domain.Coupon
	CoinsToUse  int64
	CoinBalance int64
}

// Calculate prices an order in a fixed order: subtotal, shipping, tax,
// coupon discount, coin discount, total.
func Calculate(p Policy, in Input) domain.PriceBreakdown {
	var b domain.PriceBreakdown

	b.Subtotal = Subtotal(in.Items)
	b.Shipping = p.ShippingFor(b.Subtotal)
	b.Tax = p.TaxFor(b.Subtotal)
	b.CouponDiscount = CouponDiscount(in.Coupon, b.Subtotal)
	b.CoinsDiscount = CoinsDiscount(in.CoinsToUse, in.CoinBalance, b.Subtotal-b.CouponDiscount)

	b.Total = b.Subtotal + b.Shipping + b.Tax - b.CouponDiscount - b.CoinsDiscount
	if b.Total < 0 {
		b.Total = 0
	}
	return b
}

// Subtotal sums unit price times quantity across lines.
func Subtotal(items []LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}

// CouponDiscount computes the discount a valid coupon grants on subtotal.
// Percentage discounts are capped at MaxDiscount when set; fixed discounts
// never exceed the subtotal.
func CouponDiscount(c *domain.Coupon, subtotal int64) int64 {
	if c == nil || subtotal <= 0 {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case domain.DiscountTypePercentage:
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case domain.DiscountTypeFixed:
		discount = c.DiscountValue
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// CoinsDiscount converts requested coins into a discount in paise. The result
// never exceeds the coins the user owns, the coins requested, or the amount
// left after the coupon. Only whole coins are spent.
func CoinsDiscount(coinsToUse, balance, remaining int64) int64 {
	coins := min(coinsToUse, balance)
	if coins <= 0 || remaining <= 0 {
		return 0
	}
	discount := coins * domain.PaisePerCoin
	if discount > remaining {
		discount = (remaining / domain.PaisePerCoin) * domain.PaisePerCoin
	}
	return discount
}
