package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// USER / LOYALTY DOMAIN TYPES
// =============================================================================

// Loyalty-related domain errors.
var (
	ErrUserNotFound          = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrRewardNotFound        = &Error{Code: ENOTFOUND, Message: "Reward not found"}
	ErrRewardAlreadyClaimed  = &Error{Code: EINVALID, Message: "Reward already claimed"}
	ErrMilestoneNotReached   = &Error{Code: EINVALID, Message: "Referral milestone not reached"}
	ErrSelfReferral          = &Error{Code: EINVALID, Message: "You cannot use your own referral code"}
	ErrAlreadyReferred       = &Error{Code: ECONFLICT, Message: "Account already has a referrer"}
	ErrReferralCouponMissing = &Error{Code: ENOTFOUND, Message: "Referral coupon not found"}
)

// ReferralSignupBonus is the number of coins credited to a referrer when a
// new user registers with their code.
const ReferralSignupBonus int64 = 100

// User is the loyalty view of an account. Coins never go below zero.
type User struct {
	ID           uuid.UUID
	Name         string
	Coins        int64
	ReferralCode string
	ReferredBy   *uuid.UUID
	Referrals    []uuid.UUID
	Rewards      []ReferralReward
	CreatedAt    time.Time
}

// ReferralReward is a milestone prize unlocked by referral count.
type ReferralReward struct {
	Milestone int    `json:"milestone"`
	Reward    string `json:"reward"`
	Claimed   bool   `json:"claimed"`
}

// DefaultReferralRewards are seeded for every new account.
func DefaultReferralRewards() []ReferralReward {
	return []ReferralReward{
		{Milestone: 10, Reward: "Premium Membership Free for 1 Month"},
		{Milestone: 25, Reward: "₹500 Store Credit"},
		{Milestone: 50, Reward: "₹1500 Store Credit + Free Gift"},
	}
}

// FindReward returns the reward row for a milestone.
func (u *User) FindReward(milestone int) *ReferralReward {
	for i := range u.Rewards {
		if u.Rewards[i].Milestone == milestone {
			return &u.Rewards[i]
		}
	}
	return nil
}

// UnclaimedRewards returns rewards that are unlocked and not yet claimed.
func (u *User) UnclaimedRewards() []ReferralReward {
	var out []ReferralReward
	for _, r := range u.Rewards {
		if !r.Claimed && len(u.Referrals) >= r.Milestone {
			out = append(out, r)
		}
	}
	return out
}

// CoinReason labels a coin ledger entry.
type CoinReason string

const (
	CoinReasonReferralSignup CoinReason = "referral_signup"
	CoinReasonReferralOrder  CoinReason = "referral_order"
	CoinReasonOrderSpend     CoinReason = "order_spend"
)

// CoinTransaction is an append-only record of a balance change.
type CoinTransaction struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Amount    int64
	Reason    CoinReason
	OrderID   *uuid.UUID
	CreatedAt time.Time
}

// RegisterUserParams identifies a shopper the gateway has authenticated.
type RegisterUserParams struct {
	UserID       uuid.UUID
	Name         string
	ReferralCode string // code the shopper signed up with; optional
}

// RegisterUserResult is the provisioned account.
type RegisterUserResult struct {
	User           *User
	ReferralCoupon *Coupon
	Created        bool       // false when the account already existed
	ReferrerID     *uuid.UUID // set when this call linked a referrer
}

// ReferralService manages the referral program and loyalty summary.
type ReferralService interface {
	// RegisterUser provisions the account of an authenticated shopper: the
	// user with a fresh referral code and the default milestones, their
	// referral coupon and, for a known referral code, the referral link and
	// referrer bonus. Repeat calls return the existing account.
	RegisterUser(ctx context.Context, params RegisterUserParams) (*RegisterUserResult, error)

	// RegisterReferral links a newly registered user to the owner of code and
	// credits the referrer. Unknown codes are ignored.
	RegisterReferral(ctx context.Context, newUserID uuid.UUID, code string) error

	// EnsureReferralCoupon creates the user's own referral coupon if missing.
	EnsureReferralCoupon(ctx context.Context, userID uuid.UUID) (*Coupon, error)

	// ClaimMilestone marks a milestone reward claimed.
	ClaimMilestone(ctx context.Context, userID uuid.UUID, milestone int) (*ReferralReward, error)

	// GetSummary returns the user's loyalty summary.
	GetSummary(ctx context.Context, userID uuid.UUID) (*LoyaltySummary, error)
}

// LoyaltySummary is the loyalty view returned to the account owner.
type LoyaltySummary struct {
	Coins            int64            `json:"coins"`
	ReferralCode     string           `json:"referralCode"`
	ReferralCount    int              `json:"referralCount"`
	Referrals        []uuid.UUID      `json:"referrals"`
	Rewards          []ReferralReward `json:"referralRewards"`
	UnclaimedRewards []ReferralReward `json:"unclaimedRewards"`
}

// CouponService exposes coupon lookups outside the cart.
type CouponService interface {
	// ValidateCoupon checks a code against an order value and quotes the discount.
	ValidateCoupon(ctx context.Context, code string, orderValue int64) (*CouponSummary, error)

	// MyReferralCoupon returns the caller's referral coupon and referral stats.
	MyReferralCoupon(ctx context.Context, userID uuid.UUID) (*ReferralCouponView, error)
}

// ReferralCouponView pairs a referral coupon with the owner's referral stats.
type ReferralCouponView struct {
	Coupon         *Coupon     `json:"coupon"`
	TotalReferrals int         `json:"totalReferrals"`
	Referrals      []uuid.UUID `json:"referrals"`
}
