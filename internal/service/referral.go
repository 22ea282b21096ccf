package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// Referral coupon terms: 10% off orders of ₹500 or more, capped at ₹200.
const (
	referralCouponPercent     int64 = 10
	referralCouponMinOrder    int64 = 50000
	referralCouponMaxDiscount int64 = 20000
)

const maxReferralCodeAttempts = 5

type referralService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewReferralService creates a new ReferralService instance
func NewReferralService(store repository.Store, logger zerolog.Logger) domain.ReferralService {
	return &referralService{
		store:  store,
		logger: logger.With().Str("service", "referral").Logger(),
		now:    time.Now,
	}
}

// RegisterUser provisions the account in one transaction. An existing
// account is left as is apart from linking a referrer it does not have yet.
func (s *referralService) RegisterUser(ctx context.Context, params domain.RegisterUserParams) (*domain.RegisterUserResult, error) {
	code := normalizeReferralCode(params.ReferralCode)

	var result domain.RegisterUserResult
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		result = domain.RegisterUserResult{}

		user, err := q.GetUser(ctx, params.UserID)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			if user, err = s.createUser(ctx, q, params); err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return fmt.Errorf("failed to load user: %w", err)
		}

		if code != "" && user.ReferredBy == nil {
			referrerID, err := s.linkReferrer(ctx, q, user.ID, code)
			if err != nil {
				return err
			}
			result.ReferrerID = referrerID
			user.ReferredBy = referrerID
		}

		coupon, err := s.referralCoupon(ctx, q, user)
		if err != nil {
			return err
		}
		result.User = user
		result.ReferralCoupon = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.ReferrerID != nil {
		s.recordReferral(params.UserID, *result.ReferrerID)
	}
	if result.Created {
		s.logger.Info().
			Str("user_id", params.UserID.String()).
			Str("referral_code", result.User.ReferralCode).
			Bool("referred", result.ReferrerID != nil).
			Msg("User registered")
	}
	return &result, nil
}

// createUser inserts a user with an unused referral code. The code doubles
// as the referral coupon code, so it must be free in both places.
func (s *referralService) createUser(ctx context.Context, q repository.Querier, params domain.RegisterUserParams) (*domain.User, error) {
	for range maxReferralCodeAttempts {
		code := newReferralCode()
		if _, err := q.GetUserByReferralCode(ctx, code); !errors.Is(err, domain.ErrUserNotFound) {
			if err != nil {
				return nil, fmt.Errorf("failed to check referral code: %w", err)
			}
			continue
		}
		if _, err := q.GetCouponByCode(ctx, code); !errors.Is(err, domain.ErrCouponNotFound) {
			if err != nil {
				return nil, fmt.Errorf("failed to check coupon code: %w", err)
			}
			continue
		}

		user := &domain.User{
			ID:           params.UserID,
			Name:         strings.TrimSpace(params.Name),
			ReferralCode: code,
			Rewards:      domain.DefaultReferralRewards(),
			CreatedAt:    s.now(),
		}
		if err := q.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, domain.Errorf(domain.ECONFLICT, "referral.register_user", "could not allocate a referral code")
}

// RegisterReferral links newUserID to the owner of code and credits the
// referrer. Unknown codes are ignored so registration can proceed.
func (s *referralService) RegisterReferral(ctx context.Context, newUserID uuid.UUID, code string) error {
	code = normalizeReferralCode(code)
	if code == "" {
		return ErrMissingReferrer
	}

	var referrerID *uuid.UUID
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		var err error
		referrerID, err = s.linkReferrer(ctx, q, newUserID, code)
		return err
	})
	if err != nil {
		return err
	}
	if referrerID != nil {
		s.recordReferral(newUserID, *referrerID)
	}
	return nil
}

// linkReferrer sets the referrer of userID to the owner of code and credits
// the signup bonus. It returns nil for an unknown code.
func (s *referralService) linkReferrer(ctx context.Context, q repository.Querier, userID uuid.UUID, code string) (*uuid.UUID, error) {
	referrer, err := q.GetUserByReferralCode(ctx, code)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Debug().Str("user_id", userID.String()).Str("code", code).Msg("Unknown referral code ignored")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if referrer.ID == userID {
		return nil, domain.ErrSelfReferral
	}

	if err := q.SetReferrer(ctx, userID, referrer.ID); err != nil {
		return nil, err
	}
	if err := q.CreditCoins(ctx, referrer.ID, domain.ReferralSignupBonus); err != nil {
		return nil, fmt.Errorf("failed to credit referrer: %w", err)
	}
	if err := q.RecordCoinTransaction(ctx, &domain.CoinTransaction{
		UserID:    referrer.ID,
		Amount:    domain.ReferralSignupBonus,
		Reason:    domain.CoinReasonReferralSignup,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, err
	}
	return &referrer.ID, nil
}

func (s *referralService) recordReferral(userID, referrerID uuid.UUID) {
	if telemetry.Business != nil {
		telemetry.Business.ReferralsRegistered.Inc()
		telemetry.Business.CoinsCredited.WithLabelValues(string(domain.CoinReasonReferralSignup)).Add(float64(domain.ReferralSignupBonus))
	}
	s.logger.Info().
		Str("user_id", userID.String()).
		Str("referrer_id", referrerID.String()).
		Msg("Referral registered")
}

// EnsureReferralCoupon returns the user's referral coupon, creating it on
// first use.
func (s *referralService) EnsureReferralCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.referralCoupon(ctx, s.store, user)
	if errors.Is(err, domain.ErrCouponCodeExists) {
		// Lost a creation race with another request for the same user.
		return s.store.GetReferralCoupon(ctx, userID)
	}
	return coupon, err
}

// referralCoupon loads or creates the coupon carrying user's referral code.
func (s *referralService) referralCoupon(ctx context.Context, q repository.Querier, user *domain.User) (*domain.Coupon, error) {
	existing, err := q.GetReferralCoupon(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrReferralCouponMissing) {
		return nil, fmt.Errorf("failed to load referral coupon: %w", err)
	}

	minOrder, maxDiscount := referralCouponMinOrder, referralCouponMaxDiscount
	owner := user.ID
	coupon := &domain.Coupon{
		Code:          domain.NormalizeCouponCode(user.ReferralCode),
		Type:          domain.CouponTypeReferral,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: referralCouponPercent,
		MinOrderValue: &minOrder,
		MaxDiscount:   &maxDiscount,
		ValidFrom:     s.now(),
		OwnerID:       &owner,
		IsActive:      true,
		Description:   fmt.Sprintf("Referral coupon from %s", user.Name),
	}
	if err := q.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, domain.ErrCouponCodeExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create referral coupon: %w", err)
	}
	return coupon, nil
}

func normalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newReferralCode returns eight upper-case hex characters.
func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// ClaimMilestone marks a reached, unclaimed milestone reward as claimed.
func (s *referralService) ClaimMilestone(ctx context.Context, userID uuid.UUID, milestone int) (*domain.ReferralReward, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	reward := user.FindReward(milestone)
	if reward == nil {
		return nil, domain.ErrRewardNotFound
	}
	if reward.Claimed {
		return nil, domain.ErrRewardAlreadyClaimed
	}
	if len(user.Referrals) < milestone {
		return nil, &domain.Error{
			Code:    domain.EINVALID,
			Message: fmt.Sprintf("You need %d referrals to claim this reward", milestone),
			Err:     domain.ErrMilestoneNotReached,
		}
	}

	if err := s.store.ClaimReward(ctx, userID, milestone); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.RewardsClaimed.WithLabelValues(fmt.Sprint(milestone)).Inc()
	}
	s.logger.Info().Str("user_id", userID.String()).Int("milestone", milestone).Msg("Referral reward claimed")

	claimed := *reward
	claimed.Claimed = true
	return &claimed, nil
}

// GetSummary returns the user's coins, referrals and rewards.
func (s *referralService) GetSummary(ctx context.Context, userID uuid.UUID) (*domain.LoyaltySummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	referrals := user.Referrals
	if referrals == nil {
		referrals = []uuid.UUID{}
	}
	unclaimed := user.UnclaimedRewards()
	if unclaimed == nil {
		unclaimed = []domain.ReferralReward{}
	}

	return &domain.LoyaltySummary{
		Coins:            user.Coins,
		ReferralCode:     user.ReferralCode,
		ReferralCount:    len(referrals),
		Referrals:        referrals,
		Rewards:          user.Rewards,
		UnclaimedRewards: unclaimed,
	}, nil
}
