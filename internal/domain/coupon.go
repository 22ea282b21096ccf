package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// COUPON DOMAIN TYPES
// =============================================================================

// Coupon validation errors. Each failure kind is a distinct sentinel so callers
// can tell them apart with errors.Is.
var (
	ErrCouponInvalid      = &Error{Code: EINVALID, Message: "Invalid coupon code"}
	ErrCouponNotYetActive = &Error{Code: EINVALID, Message: "Coupon not yet valid"}
	ErrCouponExpired      = &Error{Code: EINVALID, Message: "Coupon has expired"}
	ErrCouponLimitReached = &Error{Code: EINVALID, Message: "Coupon usage limit reached"}
	ErrCouponBelowMinimum = &Error{Code: EINVALID, Message: "Order value is below the coupon minimum"}
	ErrCouponAlreadyUsed  = &Error{Code: EINVALID, Message: "Coupon already redeemed by this account"}
	ErrCouponNotFound     = &Error{Code: ENOTFOUND, Message: "Coupon not found"}
	ErrCouponCodeExists   = &Error{Code: ECONFLICT, Message: "Coupon code already exists"}
)

// CouponType classifies why a coupon exists.
type CouponType string

const (
	CouponTypeReferral    CouponType = "referral"
	CouponTypePromotional CouponType = "promotional"
	CouponTypeDiscount    CouponType = "discount"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage" // DiscountValue is a percent
	DiscountTypeFixed      DiscountType = "fixed"      // DiscountValue is paise
)

// Coupon is a discount code. Monetary fields are in paise.
type Coupon struct {
	ID            uuid.UUID    `json:"id"`
	Code          string       `json:"code"`
	Type          CouponType   `json:"type"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	MinOrderValue *int64       `json:"minOrderValue,omitempty"`
	MaxDiscount   *int64       `json:"maxDiscount,omitempty"`
	UsageCount    int          `json:"usageCount"`
	UsageLimit    *int         `json:"usageLimit,omitempty"`
	ValidFrom     time.Time    `json:"validFrom"`
	ValidUntil    *time.Time   `json:"validUntil,omitempty"`
	OwnerID       *uuid.UUID   `json:"owner,omitempty"`
	UsedBy        []uuid.UUID  `json:"-"`
	IsActive      bool         `json:"isActive"`
	Description   string       `json:"description,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// NormalizeCouponCode upper-cases and trims a user supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate evaluates the coupon against a proposed order value at now.
// Checks run in a fixed order and the first failure is returned.
func (c *Coupon) Validate(orderValue int64, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInvalid
	}
	if c.ValidFrom.After(now) {
		return ErrCouponNotYetActive
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrCouponLimitReached
	}
	if c.MinOrderValue != nil && orderValue < *c.MinOrderValue {
		return &Error{
			Code:    EINVALID,
			Message: fmt.Sprintf("Minimum order value of %s required", FormatRupees(*c.MinOrderValue)),
			Err:     ErrCouponBelowMinimum,
		}
	}
	return nil
}

// RedeemedBy reports whether userID already appears in the redemption list.
func (c *Coupon) RedeemedBy(userID uuid.UUID) bool {
	return slices.Contains(c.UsedBy, userID)
}

// IsReferral reports whether redemptions should credit the coupon owner.
func (c *Coupon) IsReferral() bool {
	return c.Type == CouponTypeReferral && c.OwnerID != nil
}

// FormatRupees renders paise as a rupee string, e.g. 99900 -> "₹999.00".
func FormatRupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}
