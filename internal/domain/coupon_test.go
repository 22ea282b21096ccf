package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCoupon_Validate(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	limit := 5
	minValue := int64(100000)

	base := func() Coupon {
		return Coupon{
			Code:          "WELCOME10",
			Type:          CouponTypePromotional,
			DiscountType:  DiscountTypePercentage,
			DiscountValue: 10,
			ValidFrom:     past,
			IsActive:      true,
		}
	}

	tests := []struct {
		name       string
		mutate     func(c *Coupon)
		orderValue int64
		wantErr    error
	}{
		{
			name:       "valid coupon",
			mutate:     func(c *Coupon) {},
			orderValue: 50000,
		},
		{
			name:       "inactive",
			mutate:     func(c *Coupon) { c.IsActive = false },
			orderValue: 50000,
			wantErr:    ErrCouponInvalid,
		},
		{
			name:       "not yet active",
			mutate:     func(c *Coupon) { c.ValidFrom = future },
			orderValue: 50000,
			wantErr:    ErrCouponNotYetActive,
		},
		{
			name:       "expired",
			mutate:     func(c *Coupon) { c.ValidUntil = &past },
			orderValue: 50000,
			wantErr:    ErrCouponExpired,
		},
		{
			name:       "valid until now is still valid",
			mutate:     func(c *Coupon) { c.ValidUntil = &now },
			orderValue: 50000,
		},
		{
			name: "usage limit reached",
			mutate: func(c *Coupon) {
				c.UsageLimit = &limit
				c.UsageCount = 5
			},
			orderValue: 50000,
			wantErr:    ErrCouponLimitReached,
		},
		{
			name:       "below minimum order value",
			mutate:     func(c *Coupon) { c.MinOrderValue = &minValue },
			orderValue: 99999,
			wantErr:    ErrCouponBelowMinimum,
		},
		{
			name:       "exactly minimum order value",
			mutate:     func(c *Coupon) { c.MinOrderValue = &minValue },
			orderValue: 100000,
		},
		{
			name: "inactive wins over expired",
			mutate: func(c *Coupon) {
				c.IsActive = false
				c.ValidUntil = &past
			},
			orderValue: 50000,
			wantErr:    ErrCouponInvalid,
		},
		{
			name: "expired wins over limit reached",
			mutate: func(c *Coupon) {
				c.ValidUntil = &past
				c.UsageLimit = &limit
				c.UsageCount = 9
			},
			orderValue: 50000,
			wantErr:    ErrCouponExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)

			err := c.Validate(tt.orderValue, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			assert.Equal(t, EINVALID, ErrorCode(err))
		})
	}
}

func TestCoupon_Validate_BelowMinimumMessage(t *testing.T) {
	minValue := int64(100000)
	c := Coupon{IsActive: true, MinOrderValue: &minValue}

	err := c.Validate(500, time.Now())

	assert.Equal(t, "Minimum order value of ₹1000.00 required", ErrorMessage(err))
}

func TestCoupon_RedeemedByAndReferral(t *testing.T) {
	owner := uuid.New()
	user := uuid.New()
	c := Coupon{Type: CouponTypeReferral, OwnerID: &owner, UsedBy: []uuid.UUID{user}}

	assert.True(t, c.RedeemedBy(user))
	assert.False(t, c.RedeemedBy(owner))
	assert.True(t, c.IsReferral())

	c.OwnerID = nil
	assert.False(t, c.IsReferral(), "referral coupon without owner credits nobody")
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "WELCOME10", NormalizeCouponCode("  welcome10 "))
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "₹999.00", FormatRupees(99900))
	assert.Equal(t, "₹0.05", FormatRupees(5))
	assert.Equal(t, "-₹1.50", FormatRupees(-150))
}
