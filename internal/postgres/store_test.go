package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/kirana/internal"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

// newTestStore connects to TEST_DATABASE_URL, skipping when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, internal.MigrateDatabase(url))

	s, err := New(context.Background(), Config{URL: url, MaxConns: 10}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedUser(t *testing.T, s *Store, coins int64) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Name: "Test", Coins: coins, ReferralCode: "T" + uuid.NewString()[:10]}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, s *Store, qty int) *domain.Product {
	t.Helper()
	color := "black"
	p := &domain.Product{
		Name:      "Canvas Tote",
		Price:     49900,
		IsActive:  true,
		Inventory: []domain.Variant{{Color: &color, Quantity: qty}},
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func seedOrder(t *testing.T, s *Store, userID uuid.UUID) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		ShippingAddress: domain.Address{City: "Pune", Country: "IN"},
		Payment:         domain.PaymentInfo{IntentID: "pi_" + uuid.NewString(), Status: domain.PaymentStatusPending, Method: domain.PaymentMethodCard, Amount: 68782},
		Price:           domain.PriceBreakdown{Subtotal: 49900, Shipping: 9900, Tax: 8982, Total: 68782},
		Status:          domain.OrderStatusPending,
		ShippingStatus:  domain.ShippingStatusPending,
		Items:           []domain.OrderItem{{ProductID: uuid.New(), Name: "Canvas Tote", Price: 49900, Quantity: 1}},
	}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func TestStore_UserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	referrer := seedUser(t, s, 0)
	referred := seedUser(t, s, 0)

	require.NoError(t, s.SetReferrer(ctx, referred.ID, referrer.ID))
	assert.ErrorIs(t, s.SetReferrer(ctx, referred.ID, referrer.ID), domain.ErrAlreadyReferred)

	got, err := s.GetUserByReferralCode(ctx, referrer.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{referred.ID}, got.Referrals)
	assert.Len(t, got.Rewards, 3)

	_, err = s.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_DeductCoins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 10)

	assert.ErrorIs(t, s.DeductCoins(ctx, u.ID, 11), domain.ErrInsufficientCoins)
	require.NoError(t, s.DeductCoins(ctx, u.ID, 10))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Coins)
}

func TestStore_DecrementInventory_LastUnitRace(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, 1)
	color := "black"

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(context.Background(), func(q repository.Querier) error {
				return q.DecrementInventory(context.Background(), p.ID, &color, nil, 1)
			})
			if err == nil {
				succeeded.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Inventory[0].Quantity)
}

func TestStore_MarkOrderPaid_Once(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 0)
	o := seedOrder(t, s, u.ID)

	require.NoError(t, s.MarkOrderPaid(ctx, o.ID, time.Now()))
	assert.ErrorIs(t, s.MarkOrderPaid(ctx, o.ID, time.Now()), repository.ErrAlreadySettled)
	assert.ErrorIs(t, s.MarkOrderPaid(ctx, uuid.New(), time.Now()), domain.ErrOrderNotFound)

	got, err := s.GetOrderByIntentID(ctx, o.Payment.IntentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Payment.Status)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)
	assert.Equal(t, "Pune", got.ShippingAddress.City)
	require.Len(t, got.Items, 1)

	updated, err := s.MarkOrderPaymentFailed(ctx, o.Payment.IntentID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestStore_IncrementCouponUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	limit := 1
	c := &domain.Coupon{
		Code:          "T" + uuid.NewString()[:10],
		Type:          domain.CouponTypePromotional,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 10,
		UsageLimit:    &limit,
		IsActive:      true,
	}
	require.NoError(t, s.CreateCoupon(ctx, c))
	assert.ErrorIs(t, s.CreateCoupon(ctx, c), domain.ErrCouponCodeExists)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, s.IncrementCouponUsage(ctx, c.ID, first, uuid.New()))
	assert.ErrorIs(t, s.IncrementCouponUsage(ctx, c.ID, first, uuid.New()), domain.ErrCouponAlreadyUsed)
	assert.ErrorIs(t, s.IncrementCouponUsage(ctx, c.ID, second, uuid.New()), domain.ErrCouponLimitReached)
	assert.ErrorIs(t, s.IncrementCouponUsage(ctx, uuid.New(), second, uuid.New()), domain.ErrCouponNotFound)

	got, err := s.GetCouponByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
	assert.Equal(t, []uuid.UUID{first}, got.UsedBy)
}

func TestStore_InTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 50)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q repository.Querier) error {
		require.NoError(t, q.DeductCoins(ctx, u.ID, 50))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Coins)
}

func TestStore_CartRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 0)
	color := "black"
	code := "SAVE10"

	cart := &domain.Cart{UserID: u.ID, CouponCode: &code, CoinsToUse: 5,
		Items: []domain.CartItem{{ProductID: uuid.New(), Quantity: 2, Color: &color}}}
	require.NoError(t, s.SaveCart(ctx, cart))

	got, err := s.GetCartByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, "SAVE10", *got.CouponCode)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "black", *got.Items[0].Color)
	assert.Nil(t, got.Items[0].Size)

	require.NoError(t, s.DeleteCart(ctx, u.ID))
	_, err = s.GetCartByUser(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestStore_ClaimReward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 0)

	require.NoError(t, s.ClaimReward(ctx, u.ID, 10))
	assert.ErrorIs(t, s.ClaimReward(ctx, u.ID, 10), domain.ErrRewardAlreadyClaimed)
	assert.ErrorIs(t, s.ClaimReward(ctx, u.ID, 7), domain.ErrRewardNotFound)
}

func TestStore_CreateOrder_FailedItemLeavesNoOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 0)

	o := &domain.Order{
		ID:              uuid.New(),
		UserID:          u.ID,
		ShippingAddress: domain.Address{City: "Pune", Country: "IN"},
		Payment:         domain.PaymentInfo{IntentID: "pi_" + uuid.NewString(), Status: domain.PaymentStatusPending, Method: domain.PaymentMethodCard, Amount: 49900},
		Price:           domain.PriceBreakdown{Subtotal: 49900, Total: 49900},
		Status:          domain.OrderStatusPending,
		ShippingStatus:  domain.ShippingStatusPending,
		Items: []domain.OrderItem{
			{ProductID: uuid.New(), Name: "Canvas Tote", Price: 49900, Quantity: 1},
			{ProductID: uuid.New(), Name: "Broken line", Price: 100, Quantity: 0}, // violates quantity >= 1
		},
	}

	t.Run("on the pool", func(t *testing.T) {
		require.Error(t, s.CreateOrder(ctx, o))
		_, err := s.GetOrder(ctx, o.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("inside a transaction", func(t *testing.T) {
		o.ID = uuid.New()
		require.NoError(t, s.InTx(ctx, func(q repository.Querier) error {
			assert.Error(t, q.CreateOrder(ctx, o))
			return nil
		}))
		_, err := s.GetOrder(ctx, o.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestStore_CreateUser_FailedRewardLeavesNoUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		ID:           uuid.New(),
		ReferralCode: "T" + uuid.NewString()[:10],
		Rewards: []domain.ReferralReward{
			{Milestone: 10, Reward: "Coupon"},
			{Milestone: 10, Reward: "Duplicate"},
		},
	}
	require.Error(t, s.CreateUser(ctx, u))
	_, err := s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_ListPendingOrders_Pages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, 0)

	created := map[uuid.UUID]bool{}
	for range 5 {
		created[seedOrder(t, s, u.ID).ID] = true
	}

	seen := map[uuid.UUID]bool{}
	var after *repository.PendingCursor
	cutoff := time.Now().Add(time.Minute)
	for {
		page, err := s.ListPendingOrders(ctx, cutoff, after, 2)
		require.NoError(t, err)
		for _, o := range page {
			assert.False(t, seen[o.ID], "order %s returned twice", o.ID)
			seen[o.ID] = true
		}
		if len(page) < 2 {
			break
		}
		after = repository.CursorAfter(&page[len(page)-1])
	}
	for id := range created {
		assert.True(t, seen[id], "order %s never returned", id)
	}
}
