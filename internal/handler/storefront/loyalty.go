package storefront

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/handler"
)

// LoyaltyHandler serves coupon lookups and the referral program.
type LoyaltyHandler struct {
	coupons   domain.CouponService
	referrals domain.ReferralService
}

// NewLoyaltyHandler creates a new loyalty handler
func NewLoyaltyHandler(coupons domain.CouponService, referrals domain.ReferralService) *LoyaltyHandler {
	return &LoyaltyHandler{coupons: coupons, referrals: referrals}
}

type validateCouponRequest struct {
	Code       string `json:"code" validate:"required,max=64"`
	OrderValue int64  `json:"orderValue" validate:"gte=0"`
}

type signupRequest struct {
	Name         string `json:"name" validate:"max=120"`
	ReferralCode string `json:"referralCode" validate:"max=64"`
}

type registerReferralRequest struct {
	ReferralCode string `json:"referralCode" validate:"max=64"`
}

// ValidateCoupon handles POST /coupons/validate. It is public; per-user
// rules are checked when the coupon is applied to a cart.
func (h *LoyaltyHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := handler.DecodeJSON(r, "coupon.validate", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.coupons.ValidateCoupon(r.Context(), req.Code, req.OrderValue)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"coupon": summary})
}

// MyReferralCoupon handles GET /coupons/my-referral
func (h *LoyaltyHandler) MyReferralCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.coupons.MyReferralCoupon(r.Context(), domain.RequireUserID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, view)
}

// Summary handles GET /referrals
func (h *LoyaltyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.referrals.GetSummary(r.Context(), domain.RequireUserID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// Signup handles POST /referrals/signup. The gateway calls it for every
// shopper it authenticates; the first call provisions the account (201) and
// later calls return it unchanged (200).
func (h *LoyaltyHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := handler.DecodeJSON(r, "referral.signup", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	res, err := h.referrals.RegisterUser(r.Context(), domain.RegisterUserParams{
		UserID:       domain.RequireUserID(r.Context()),
		Name:         req.Name,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	handler.WriteJSON(w, status, map[string]any{
		"user": map[string]any{
			"id":           res.User.ID,
			"name":         res.User.Name,
			"coins":        res.User.Coins,
			"referralCode": res.User.ReferralCode,
			"referredBy":   res.User.ReferredBy,
		},
		"referralCoupon": res.ReferralCoupon,
		"referred":       res.ReferrerID != nil,
	})
}

// Register handles POST /referrals/register. The gateway calls it once
// right after a sign-up that carried a referral code. It also issues the
// new user's own referral coupon.
func (h *LoyaltyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReferralRequest
	if err := handler.DecodeJSON(r, "referral.register", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()
	userID := domain.RequireUserID(ctx)

	if err := h.referrals.RegisterReferral(ctx, userID, req.ReferralCode); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	coupon, err := h.referrals.EnsureReferralCoupon(ctx, userID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"message":        "Referral registered",
		"referralCoupon": coupon,
	})
}

// ClaimMilestone handles POST /referrals/milestones/{milestone}/claim
func (h *LoyaltyHandler) ClaimMilestone(w http.ResponseWriter, r *http.Request) {
	milestone, err := strconv.Atoi(r.PathValue("milestone"))
	if err != nil || milestone <= 0 {
		handler.ErrorResponse(w, r, domain.NewValidationError("referral.claim", "milestone", "must be a positive number"))
		return
	}

	reward, err := h.referrals.ClaimMilestone(r.Context(), domain.RequireUserID(r.Context()), milestone)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Reward claimed",
		"reward":  reward,
	})
}
