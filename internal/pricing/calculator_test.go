package pricing_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/pricing"
)

func ptr[T any](v T) *T { return &v }

func TestCalculate_WelcomeCouponScenario(t *testing.T) {
	in := pricing.Input{
		Items: []pricing.LineItem{{UnitPrice: 120000, Quantity: 1}},
		Coupon: &domain.Coupon{
			Code:          "WELCOME10",
			DiscountType:  domain.DiscountTypePercentage,
			DiscountValue: 10,
			MinOrderValue: ptr(int64(100000)),
			MaxDiscount:   ptr(int64(20000)),
			IsActive:      true,
		},
		CoinsToUse:  50,
		CoinBalance: 500,
	}

	got := pricing.Calculate(pricing.DefaultPolicy(), in)

	assert.Equal(t, int64(120000), got.Subtotal)
	assert.Equal(t, int64(0), got.Shipping, "subtotal above ₹999 ships free")
	assert.Equal(t, int64(21600), got.Tax, "1200 * 0.18 = 216")
	assert.Equal(t, int64(12000), got.CouponDiscount, "10% of 1200 is under the ₹200 cap")
	assert.Equal(t, int64(5000), got.CoinsDiscount)
	assert.Equal(t, int64(124600), got.Total, "1200 + 0 + 216 - 120 - 50 = 1246")
	assert.Equal(t, int64(50), got.CoinsUsed())
}

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   *domain.Coupon
		subtotal int64
		want     int64
	}{
		{
			name:     "no coupon",
			subtotal: 50000,
			want:     0,
		},
		{
			name:     "percentage capped at max discount",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypePercentage, DiscountValue: 25, MaxDiscount: ptr(int64(75000))},
			subtotal: 400000,
			want:     75000,
		},
		{
			name:     "percentage without cap",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypePercentage, DiscountValue: 25},
			subtotal: 400000,
			want:     100000,
		},
		{
			name:     "percentage rounds to the paisa",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypePercentage, DiscountValue: 15},
			subtotal: 333,
			want:     50,
		},
		{
			name:     "fixed below subtotal",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypeFixed, DiscountValue: 10000},
			subtotal: 50000,
			want:     10000,
		},
		{
			name:     "fixed never exceeds subtotal",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypeFixed, DiscountValue: 50000},
			subtotal: 10000,
			want:     10000,
		},
		{
			name:     "empty cart",
			coupon:   &domain.Coupon{DiscountType: domain.DiscountTypeFixed, DiscountValue: 50000},
			subtotal: 0,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pricing.CouponDiscount(tt.coupon, tt.subtotal))
		})
	}
}

func TestCoinsDiscount(t *testing.T) {
	tests := []struct {
		name      string
		requested int64
		balance   int64
		remaining int64
		want      int64
	}{
		{"requested below balance", 50, 500, 100000, 5000},
		{"clamped to balance", 200, 30, 100000, 3000},
		{"clamped to remaining after coupon", 500, 500, 12000, 12000},
		{"only whole coins are spent", 500, 500, 12050, 12000},
		{"nothing remaining", 100, 100, 0, 0},
		{"negative request", -10, 100, 5000, 0},
		{"zero balance", 100, 0, 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pricing.CoinsDiscount(tt.requested, tt.balance, tt.remaining))
		})
	}
}

func TestPolicy_ShippingAndTax(t *testing.T) {
	p := pricing.DefaultPolicy()

	assert.Equal(t, int64(9900), p.ShippingFor(99900), "exactly ₹999 still pays shipping")
	assert.Equal(t, int64(0), p.ShippingFor(99901))
	assert.Equal(t, int64(9900), p.ShippingFor(0))

	assert.Equal(t, int64(18), p.TaxFor(100))
	assert.Equal(t, int64(1), p.TaxFor(3), "0.54 paise rounds up")
	assert.Equal(t, int64(0), p.TaxFor(2), "0.36 paise rounds down")
}

func TestPolicy_ReferralBonus(t *testing.T) {
	p := pricing.DefaultPolicy()

	assert.Equal(t, int64(60), p.ReferralBonus(120000), "5% of ₹1200")
	assert.Equal(t, int64(2), p.ReferralBonus(5999), "5% of ₹59.99 drops the fraction")
	assert.Equal(t, int64(0), p.ReferralBonus(0))
}

func TestNewPolicy(t *testing.T) {
	p := pricing.NewPolicy(50000, 4900, 0.05, 0.1)

	assert.Equal(t, int64(4900), p.ShippingFor(50000))
	assert.Equal(t, int64(500), p.TaxFor(10000))
	assert.Equal(t, int64(10), p.ReferralBonus(10000))
}

// randomInput builds an arbitrary but well-formed calculator input.
func randomInput(r *rand.Rand) pricing.Input {
	in := pricing.Input{
		CoinsToUse:  r.Int63n(5000),
		CoinBalance: r.Int63n(5000),
	}
	for range r.Intn(5) + 1 {
		in.Items = append(in.Items, pricing.LineItem{UnitPrice: r.Int63n(500000), Quantity: r.Intn(5) + 1})
	}
	switch r.Intn(3) {
	case 0:
		in.Coupon = &domain.Coupon{DiscountType: domain.DiscountTypePercentage, DiscountValue: r.Int63n(101), MaxDiscount: ptr(r.Int63n(100000))}
	case 1:
		in.Coupon = &domain.Coupon{DiscountType: domain.DiscountTypeFixed, DiscountValue: r.Int63n(1000000)}
	}
	return in
}

func TestCalculate_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	p := pricing.DefaultPolicy()

	for i := 0; i < 2000; i++ {
		in := randomInput(r)

		first := pricing.Calculate(p, in)
		second := pricing.Calculate(p, in)
		assert.Equal(t, first, second, "calculator must be deterministic")

		coinCap := min(in.CoinsToUse, in.CoinBalance) * domain.PaisePerCoin
		assert.GreaterOrEqual(t, first.CoinsDiscount, int64(0))
		assert.LessOrEqual(t, first.CoinsDiscount, coinCap)
		assert.LessOrEqual(t, first.CoinsDiscount, first.Subtotal-first.CouponDiscount)

		assert.LessOrEqual(t, first.CouponDiscount, first.Subtotal)
		if in.Coupon != nil && in.Coupon.DiscountType == domain.DiscountTypePercentage {
			assert.LessOrEqual(t, first.CouponDiscount, *in.Coupon.MaxDiscount)
		}

		assert.GreaterOrEqual(t, first.Total, int64(0))
	}
}
