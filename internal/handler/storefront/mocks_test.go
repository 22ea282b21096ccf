package storefront

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
)

// mockCartService implements domain.CartService for testing
type mockCartService struct {
	GetCartFunc            func(ctx context.Context, userID uuid.UUID) (*domain.CartView, error)
	AddItemFunc            func(ctx context.Context, userID uuid.UUID, params domain.AddCartItemParams) (*domain.CartView, error)
	UpdateItemQuantityFunc func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartView, error)
	RemoveItemFunc         func(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartView, error)
	ClearFunc              func(ctx context.Context, userID uuid.UUID) error
	ApplyCouponFunc        func(ctx context.Context, userID uuid.UUID, code string) (*domain.CouponSummary, error)
	RemoveCouponFunc       func(ctx context.Context, userID uuid.UUID) error
	SetCoinsFunc           func(ctx context.Context, userID uuid.UUID, coins int64) (int64, error)
}

func (m *mockCartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, userID)
	}
	return &domain.CartView{Items: []domain.CartLine{}}, nil
}

func (m *mockCartService) AddItem(ctx context.Context, userID uuid.UUID, params domain.AddCartItemParams) (*domain.CartView, error) {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, userID, params)
	}
	return &domain.CartView{}, nil
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartView, error) {
	if m.UpdateItemQuantityFunc != nil {
		return m.UpdateItemQuantityFunc(ctx, userID, itemID, quantity)
	}
	return &domain.CartView{}, nil
}

func (m *mockCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartView, error) {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, userID, itemID)
	}
	return &domain.CartView{}, nil
}

func (m *mockCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, userID)
	}
	return nil
}

func (m *mockCartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.CouponSummary, error) {
	if m.ApplyCouponFunc != nil {
		return m.ApplyCouponFunc(ctx, userID, code)
	}
	return &domain.CouponSummary{Code: code}, nil
}

func (m *mockCartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) error {
	if m.RemoveCouponFunc != nil {
		return m.RemoveCouponFunc(ctx, userID)
	}
	return nil
}

func (m *mockCartService) SetCoins(ctx context.Context, userID uuid.UUID, coins int64) (int64, error) {
	if m.SetCoinsFunc != nil {
		return m.SetCoinsFunc(ctx, userID, coins)
	}
	return coins, nil
}

// mockCheckoutService implements domain.CheckoutService for testing
type mockCheckoutService struct {
	PlaceOrderFunc func(ctx context.Context, userID uuid.UUID, params domain.PlaceOrderParams) (*domain.PlaceOrderResult, error)
}

func (m *mockCheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, params domain.PlaceOrderParams) (*domain.PlaceOrderResult, error) {
	return m.PlaceOrderFunc(ctx, userID, params)
}

// mockOrderService implements domain.OrderService for testing
type mockOrderService struct {
	ListOrdersFunc        func(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error)
	GetOrderFunc          func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	UpdateOrderStatusFunc func(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams) (*domain.Order, error)
}

func (m *mockOrderService) ListOrders(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error) {
	return m.ListOrdersFunc(ctx, userID, params)
}

func (m *mockOrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	return m.GetOrderFunc(ctx, userID, orderID)
}

func (m *mockOrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams) (*domain.Order, error) {
	return m.UpdateOrderStatusFunc(ctx, orderID, params)
}

// mockSettlementService implements domain.SettlementService for testing
type mockSettlementService struct {
	SettleFunc            func(ctx context.Context, params domain.SettleParams) (*domain.SettleResult, error)
	MarkPaymentFailedFunc func(ctx context.Context, intentID string, canceled bool) error
}

func (m *mockSettlementService) Settle(ctx context.Context, params domain.SettleParams) (*domain.SettleResult, error) {
	return m.SettleFunc(ctx, params)
}

func (m *mockSettlementService) MarkPaymentFailed(ctx context.Context, intentID string, canceled bool) error {
	return m.MarkPaymentFailedFunc(ctx, intentID, canceled)
}

// mockCouponService implements domain.CouponService for testing
type mockCouponService struct {
	ValidateCouponFunc   func(ctx context.Context, code string, orderValue int64) (*domain.CouponSummary, error)
	MyReferralCouponFunc func(ctx context.Context, userID uuid.UUID) (*domain.ReferralCouponView, error)
}

func (m *mockCouponService) ValidateCoupon(ctx context.Context, code string, orderValue int64) (*domain.CouponSummary, error) {
	return m.ValidateCouponFunc(ctx, code, orderValue)
}

func (m *mockCouponService) MyReferralCoupon(ctx context.Context, userID uuid.UUID) (*domain.ReferralCouponView, error) {
	return m.MyReferralCouponFunc(ctx, userID)
}

// mockReferralService implements domain.ReferralService for testing
type mockReferralService struct {
	RegisterUserFunc         func(ctx context.Context, params domain.RegisterUserParams) (*domain.RegisterUserResult, error)
	RegisterReferralFunc     func(ctx context.Context, newUserID uuid.UUID, code string) error
	EnsureReferralCouponFunc func(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error)
	ClaimMilestoneFunc       func(ctx context.Context, userID uuid.UUID, milestone int) (*domain.ReferralReward, error)
	GetSummaryFunc           func(ctx context.Context, userID uuid.UUID) (*domain.LoyaltySummary, error)
}

func (m *mockReferralService) RegisterUser(ctx context.Context, params domain.RegisterUserParams) (*domain.RegisterUserResult, error) {
	return m.RegisterUserFunc(ctx, params)
}

func (m *mockReferralService) RegisterReferral(ctx context.Context, newUserID uuid.UUID, code string) error {
	return m.RegisterReferralFunc(ctx, newUserID, code)
}

func (m *mockReferralService) EnsureReferralCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error) {
	return m.EnsureReferralCouponFunc(ctx, userID)
}

func (m *mockReferralService) ClaimMilestone(ctx context.Context, userID uuid.UUID, milestone int) (*domain.ReferralReward, error) {
	return m.ClaimMilestoneFunc(ctx, userID, milestone)
}

func (m *mockReferralService) GetSummary(ctx context.Context, userID uuid.UUID) (*domain.LoyaltySummary, error) {
	return m.GetSummaryFunc(ctx, userID)
}

// newRequest builds a JSON request carrying userID as the principal.
func newRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(domain.NewContextWithPrincipal(req.Context(), &domain.Principal{UserID: userID, Role: domain.RoleCustomer}))
}

// serve routes req through a mux so path wildcards resolve.
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
