package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

type couponService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewCouponService creates a new CouponService instance
func NewCouponService(store repository.Store, logger zerolog.Logger) domain.CouponService {
	return &couponService{
		store:  store,
		logger: logger.With().Str("service", "coupon").Logger(),
		now:    time.Now,
	}
}

// ValidateCoupon checks code against orderValue and quotes its discount.
// Per-user redemption rules are only applied when the coupon is put on a cart.
func (s *couponService) ValidateCoupon(ctx context.Context, code string, orderValue int64) (*domain.CouponSummary, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, domain.ErrCouponInvalid
	}
	if orderValue < 0 {
		return nil, domain.Invalid("coupon.validate", "Order value cannot be negative")
	}

	c, err := s.store.GetCouponByCode(ctx, code)
	if errors.Is(err, domain.ErrCouponNotFound) {
		return nil, domain.ErrCouponInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	if err := c.Validate(orderValue, s.now()); err != nil {
		return nil, err
	}
	return couponSummary(c, orderValue), nil
}

// MyReferralCoupon returns the caller's referral coupon with their referral
// stats.
func (s *couponService) MyReferralCoupon(ctx context.Context, userID uuid.UUID) (*domain.ReferralCouponView, error) {
	c, err := s.store.GetReferralCoupon(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	referrals := user.Referrals
	if referrals == nil {
		referrals = []uuid.UUID{}
	}
	return &domain.ReferralCouponView{
		Coupon:         c,
		TotalReferrals: len(referrals),
		Referrals:      referrals,
	}, nil
}
