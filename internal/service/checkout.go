package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// checkoutService implements domain.CheckoutService.
type checkoutService struct {
	store    repository.Store
	billing  billing.Provider
	policy   pricing.Policy
	currency string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(store repository.Store, provider billing.Provider, policy pricing.Policy, currency string, logger zerolog.Logger) domain.CheckoutService {
	if currency == "" {
		currency = "inr"
	}
	return &checkoutService{
		store:    store,
		billing:  provider,
		policy:   policy,
		currency: currency,
		logger:   logger.With().Str("service", "checkout").Logger(),
		now:      time.Now,
	}
}

// PlaceOrder turns the user's cart into a pending order backed by a payment
// intent.
//
// Flow:
// 1. Load the cart (missing or empty is rejected before the processor is contacted)
// 2. Check stock for every line, collecting every shortfall
// 3. Re-validate the stored coupon
// 4. Price the cart with the live coin balance
// 5. Create the payment intent (order ID embedded in metadata)
// 6. Record the pending order
//
// Nothing is reserved here. Stock, coins and coupon usage are only consumed
// at settlement.
func (s *checkoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, params domain.PlaceOrderParams) (*domain.PlaceOrderResult, error) {
	const op = "checkout.place_order"

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.Inc()
	}

	result, reason, err := s.placeOrder(ctx, userID, params)
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.CheckoutFailed.WithLabelValues(reason).Inc()
		}
		if domain.ErrorCode(err) == domain.EINTERNAL {
			s.logger.Error().Err(err).Str("op", op).Str("user_id", userID.String()).Msg("Checkout failed")
			telemetry.CaptureError(err, map[string]interface{}{"user_id": userID.String()})
		}
		return nil, err
	}
	return result, nil
}

func (s *checkoutService) placeOrder(ctx context.Context, userID uuid.UUID, params domain.PlaceOrderParams) (*domain.PlaceOrderResult, string, error) {
	const op = "checkout.place_order"

	method := params.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCard
	}
	if !method.Valid() {
		return nil, "invalid", domain.ErrInvalidPaymentMethod
	}

	cart, err := s.store.GetCartByUser(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) || (err == nil && cart.IsEmpty()) {
		return nil, "empty_cart", domain.ErrEmptyCart
	}
	if err != nil {
		return nil, "internal", domain.Internal(err, op, "failed to load cart")
	}

	qt, err := quoteCart(ctx, s.store, s.policy, cart, s.now())
	if err != nil {
		return nil, "internal", domain.Internal(err, op, "failed to price cart")
	}

	if err := stockShortfalls(cart, qt.products); err != nil {
		return nil, "out_of_stock", err
	}
	if qt.couponErr != nil {
		return nil, "coupon", qt.couponErr
	}
	if len(qt.lines) == 0 {
		return nil, "empty_cart", domain.ErrEmptyCart
	}

	breakdown := qt.breakdown
	orderID := uuid.New()

	start := time.Now()
	intent, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		Amount:      breakdown.Total,
		Currency:    s.currency,
		Description: "Order " + orderID.String(),
		Metadata: map[string]string{
			billing.MetadataOrderID: orderID.String(),
			billing.MetadataUserID:  userID.String(),
			"cart_id":               cart.ID.String(),
		},
		IdempotencyKey: "checkout:" + orderID.String(),
	})
	if telemetry.Business != nil {
		telemetry.Business.StripeAPILatency.WithLabelValues("create_payment_intent").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("Payment intent creation failed")
		return nil, "processor", domain.Unavailable(errors.Join(domain.ErrPaymentProcessor, err), op, domain.ErrPaymentProcessor.Message)
	}

	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		Items:           snapshotItems(cart, qt.products),
		ShippingAddress: params.ShippingAddress,
		ContactNumber:   params.ContactNumber,
		Payment: domain.PaymentInfo{
			IntentID: intent.ID,
			Status:   domain.PaymentStatusPending,
			Method:   method,
			Amount:   breakdown.Total,
		},
		Price:          breakdown,
		CoinsUsed:      breakdown.CoinsUsed(),
		Status:         domain.OrderStatusPending,
		ShippingStatus: domain.ShippingStatusPending,
	}
	if qt.coupon != nil {
		code := qt.coupon.Code
		order.CouponCode = &code
	}

	err = s.store.InTx(ctx, func(q repository.Querier) error {
		return q.CreateOrder(ctx, order)
	})
	if err != nil {
		if cerr := s.billing.CancelPaymentIntent(ctx, intent.ID); cerr != nil {
			s.logger.Warn().Err(cerr).Str("payment_intent_id", intent.ID).Msg("Failed to cancel orphaned payment intent")
		}
		return nil, "internal", domain.Internal(err, op, "failed to create order")
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(string(method)).Inc()
		telemetry.Business.OrderValue.WithLabelValues(string(method)).Observe(float64(breakdown.Total))
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", userID.String()).
		Str("payment_intent_id", intent.ID).
		Int64("total", breakdown.Total).
		Msg("Order placed")

	return &domain.PlaceOrderResult{Order: order, ClientSecret: intent.ClientSecret}, "", nil
}

// stockShortfalls returns one error naming every line that cannot be filled.
func stockShortfalls(cart *domain.Cart, products map[uuid.UUID]*domain.Product) error {
	var msgs []string
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.IsActive {
			msgs = append(msgs, "A product in your cart is no longer available")
			continue
		}
		if !p.Available(it.Color, it.Size, it.Quantity) {
			msgs = append(msgs, fmt.Sprintf("%s is out of stock", p.Name))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return &domain.Error{
		Code:    domain.EINVALID,
		Op:      "checkout.place_order",
		Message: strings.Join(msgs, "; "),
		Err:     domain.ErrOutOfStock,
	}
}

// snapshotItems freezes product data onto the order lines.
func snapshotItems(cart *domain.Cart, products map[uuid.UUID]*domain.Product) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		p := products[it.ProductID]
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.PrimaryImage(),
			Price:     p.Price,
			Quantity:  it.Quantity,
			Color:     it.Color,
			Size:      it.Size,
		})
	}
	return items
}
