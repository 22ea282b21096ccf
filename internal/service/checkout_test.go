package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
)

func TestCheckoutService_PlaceOrder(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "BUYER", 20)
	p := f.seedProduct(t, "Tote", 49900, 5)
	f.seedCoupon(t, &domain.Coupon{Code: "FLAT50", DiscountType: domain.DiscountTypeFixed, DiscountValue: 5000})
	ctx := context.Background()

	f.addToCart(t, user.ID, p, 2)
	_, err := f.cart.ApplyCoupon(ctx, user.ID, "FLAT50")
	require.NoError(t, err)
	_, err = f.cart.SetCoins(ctx, user.ID, 20)
	require.NoError(t, err)

	res := f.placeOrder(t, user.ID)
	order := res.Order

	// 99800 subtotal is not above the threshold so shipping applies
	assert.Equal(t, domain.PriceBreakdown{
		Subtotal:       99800,
		Shipping:       9900,
		Tax:            17964,
		CouponDiscount: 5000,
		CoinsDiscount:  2000,
		Total:          99800 + 9900 + 17964 - 5000 - 2000,
	}, order.Price)
	assert.Equal(t, int64(20), order.CoinsUsed)
	assert.Equal(t, "FLAT50", *order.CouponCode)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.Payment.Status)
	assert.Equal(t, domain.PaymentMethodCard, order.Payment.Method)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Tote", order.Items[0].Name)
	assert.Equal(t, int64(49900), order.Items[0].Price)
	assert.NotEmpty(t, order.Items[0].Image)
	assert.NotEmpty(t, res.ClientSecret)

	intent, err := f.billing.GetPaymentIntent(ctx, order.Payment.IntentID)
	require.NoError(t, err)
	assert.Equal(t, order.Price.Total, intent.Amount)
	assert.Equal(t, "inr", intent.Currency)
	assert.Equal(t, order.ID.String(), intent.Metadata[billing.MetadataOrderID])
	assert.Equal(t, user.ID.String(), intent.Metadata[billing.MetadataUserID])

	// Nothing is consumed until settlement
	got, err := f.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Coins)
	prod, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, prod.Inventory[0].Quantity)
	_, err = f.store.GetCartByUser(ctx, user.ID)
	assert.NoError(t, err, "cart survives until payment is confirmed")
}

func TestCheckoutService_PlaceOrder_EmptyCartNeverContactsProcessor(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "EMPTY", 0)

	_, err := f.checkout.PlaceOrder(context.Background(), user.ID, domain.PlaceOrderParams{})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Empty(t, f.billing.CallLog())
}

func TestCheckoutService_PlaceOrder_OutOfStockIsItemized(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "STOCK", 0)
	tote := f.seedProduct(t, "Tote", 49900, 3)
	mug := f.seedProduct(t, "Mug", 29900, 3)
	f.addToCart(t, user.ID, tote, 3)
	f.addToCart(t, user.ID, mug, 3)

	// Someone else bought the stock after it went into the cart
	black := "black"
	ctx := context.Background()
	require.NoError(t, f.store.DecrementInventory(ctx, tote.ID, &black, nil, 2))
	require.NoError(t, f.store.DecrementInventory(ctx, mug.ID, &black, nil, 1))

	_, err := f.checkout.PlaceOrder(ctx, user.ID, domain.PlaceOrderParams{})
	require.ErrorIs(t, err, domain.ErrOutOfStock)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	msg := domain.ErrorMessage(err)
	assert.Contains(t, msg, "Tote is out of stock")
	assert.Contains(t, msg, "Mug is out of stock")
	assert.Empty(t, f.billing.CallLog())
}

func TestCheckoutService_PlaceOrder_ProcessorFailureLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "DOWN", 0)
	p := f.seedProduct(t, "Tote", 49900, 5)
	f.addToCart(t, user.ID, p, 1)
	f.billing.CreatePaymentIntentFunc = func(ctx context.Context, params billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.checkout.PlaceOrder(context.Background(), user.ID, domain.PlaceOrderParams{})
	require.ErrorIs(t, err, domain.ErrPaymentProcessor)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	orders, total, err := f.store.ListOrdersByUser(context.Background(), user.ID, repositoryFilterAll())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)

	_, err = f.store.GetCartByUser(context.Background(), user.ID)
	assert.NoError(t, err, "cart is left for a retry")
}

func TestCheckoutService_PlaceOrder_InvalidCouponRejects(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "LATE", 0)
	p := f.seedProduct(t, "Tote", 49900, 5)
	f.seedCoupon(t, &domain.Coupon{Code: "ONCE", DiscountValue: 10, UsageLimit: ptr(1)})
	f.addToCart(t, user.ID, p, 1)
	ctx := context.Background()
	_, err := f.cart.ApplyCoupon(ctx, user.ID, "ONCE")
	require.NoError(t, err)

	// Another shopper uses the last redemption
	c, err := f.store.GetCouponByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.NoError(t, f.store.IncrementCouponUsage(ctx, c.ID, uuid.New(), uuid.New()))

	_, err = f.checkout.PlaceOrder(ctx, user.ID, domain.PlaceOrderParams{})
	assert.ErrorIs(t, err, domain.ErrCouponLimitReached)
}

func TestCheckoutService_PlaceOrder_PaymentMethod(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "METHOD", 0)
	p := f.seedProduct(t, "Tote", 49900, 5)
	f.addToCart(t, user.ID, p, 1)
	ctx := context.Background()

	_, err := f.checkout.PlaceOrder(ctx, user.ID, domain.PlaceOrderParams{PaymentMethod: "cheque"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	res, err := f.checkout.PlaceOrder(ctx, user.ID, domain.PlaceOrderParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCard, res.Order.Payment.Method, "card is the default")
}
