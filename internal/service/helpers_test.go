package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/events"
	"github.com/dukerupert/kirana/internal/memory"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu      sync.Mutex
	settled []events.OrderSettled
	failed  []events.OrderPaymentFailed
}

func (p *recordingPublisher) OrderSettled(_ context.Context, e events.OrderSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *recordingPublisher) OrderPaymentFailed(_ context.Context, e events.OrderPaymentFailed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) settledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.settled)
}

type fixture struct {
	store     *memory.Store
	billing   *billing.MockProvider
	publisher *recordingPublisher

	cart     domain.CartService
	checkout domain.CheckoutService
	settle   domain.SettlementService
	orders   domain.OrderService
	referral domain.ReferralService
	coupons  domain.CouponService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	policy := pricing.DefaultPolicy()
	store := memory.NewStore()
	provider := billing.NewMockProvider()
	pub := &recordingPublisher{}

	return &fixture{
		store:     store,
		billing:   provider,
		publisher: pub,
		cart:      NewCartService(store, policy, logger),
		checkout:  NewCheckoutService(store, provider, policy, "inr", logger),
		settle:    NewSettlementService(store, provider, policy, pub, logger),
		orders:    NewOrderService(store, logger),
		referral:  NewReferralService(store, logger),
		coupons:   NewCouponService(store, logger),
	}
}

func (f *fixture) seedUser(t *testing.T, code string, coins int64) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Name: "User " + code, ReferralCode: code, Coins: coins}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// seedProduct creates a product with a single black variant.
func (f *fixture) seedProduct(t *testing.T, name string, price int64, qty int) *domain.Product {
	t.Helper()
	color := "black"
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Slug:      "slug-" + uuid.NewString()[:8],
		Price:     price,
		Images:    []string{"https://cdn.example.com/" + name + ".jpg"},
		IsActive:  true,
		Inventory: []domain.Variant{{Color: &color, Quantity: qty}},
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) seedCoupon(t *testing.T, c *domain.Coupon) *domain.Coupon {
	t.Helper()
	if c.DiscountType == "" {
		c.DiscountType = domain.DiscountTypePercentage
	}
	if c.Type == "" {
		c.Type = domain.CouponTypePromotional
	}
	c.IsActive = true
	require.NoError(t, f.store.CreateCoupon(context.Background(), c))
	return c
}

func (f *fixture) addToCart(t *testing.T, userID uuid.UUID, p *domain.Product, qty int) *domain.CartView {
	t.Helper()
	color := "black"
	view, err := f.cart.AddItem(context.Background(), userID, domain.AddCartItemParams{
		ProductID: p.ID,
		Quantity:  qty,
		Color:     &color,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) placeOrder(t *testing.T, userID uuid.UUID) *domain.PlaceOrderResult {
	t.Helper()
	res, err := f.checkout.PlaceOrder(context.Background(), userID, domain.PlaceOrderParams{
		ShippingAddress: domain.Address{Street: "12 MG Road", City: "Bengaluru", State: "KA", ZipCode: "560001", Country: "IN"},
		ContactNumber:   "9876543210",
		PaymentMethod:   domain.PaymentMethodCard,
	})
	require.NoError(t, err)
	return res
}

func ptr[T any](v T) *T { return &v }

func repositoryFilterAll() repository.OrderFilter {
	return repository.OrderFilter{Limit: 100}
}
