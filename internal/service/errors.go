package service

import (
	"github.com/dukerupert/kirana/internal/domain"
)

// Validation errors - use domain.EINVALID
var (
	ErrNegativeCoins     = domain.Errorf(domain.EINVALID, "", "Coins to use cannot be negative")
	ErrInvalidPage       = domain.Errorf(domain.EINVALID, "", "Page and limit must be positive")
	ErrMissingReferrer   = domain.Errorf(domain.EINVALID, "", "Referral code is required")
	ErrOwnReferralCoupon = domain.Errorf(domain.EINVALID, "", "You cannot redeem your own referral coupon")
	ErrMissingIdentifier = domain.Errorf(domain.EINVALID, "", "Order ID or payment intent ID is required")
	ErrNotEnoughStock    = domain.Errorf(domain.EINVALID, "", "Insufficient stock")
)

// Settlement errors
var (
	ErrAmountMismatch = domain.Errorf(domain.EINTERNAL, "", "Payment amount does not match order total")
)
