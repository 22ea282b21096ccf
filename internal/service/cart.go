package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/dukerupert/kirana/internal/telemetry"
)

type cartService struct {
	store  repository.Store
	policy pricing.Policy
	logger zerolog.Logger
	now    func() time.Time
}

// NewCartService creates a new CartService instance
func NewCartService(store repository.Store, policy pricing.Policy, logger zerolog.Logger) domain.CartService {
	return &cartService{
		store:  store,
		policy: policy,
		logger: logger.With().Str("service", "cart").Logger(),
		now:    time.Now,
	}
}

// GetCart returns the live-priced cart. A user without a cart gets an empty view.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	cart, err := s.store.GetCartByUser(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return emptyCartView(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return s.view(ctx, s.store, cart)
}

// AddItem adds a product variant, merging with a matching line.
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, params domain.AddCartItemParams) (*domain.CartView, error) {
	if params.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	var view *domain.CartView
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		product, err := q.GetProduct(ctx, params.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return domain.ErrProductNotFound
		}

		cart, err := q.GetCartByUser(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			cart = &domain.Cart{UserID: userID}
		} else if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}

		want := params.Quantity
		line := findLine(cart, params.ProductID, params.Color, params.Size)
		if line != nil {
			want += line.Quantity
		}
		if !product.Available(params.Color, params.Size, want) {
			return domain.ErrOutOfStock
		}

		if line != nil {
			line.Quantity = want
		} else {
			cart.Items = append(cart.Items, domain.CartItem{
				ProductID: params.ProductID,
				Quantity:  params.Quantity,
				Color:     params.Color,
				Size:      params.Size,
			})
		}

		if err := q.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		view, err = s.view(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartItemsAdded.WithLabelValues(params.ProductID.String()).Inc()
	}
	return view, nil
}

// UpdateItemQuantity sets a line's quantity; zero or below removes it.
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartView, error) {
	return s.mutate(ctx, userID, func(q repository.Querier, cart *domain.Cart) error {
		item := cart.FindItem(itemID)
		if item == nil {
			return domain.ErrCartItemNotFound
		}
		if quantity <= 0 {
			removeLine(cart, itemID)
			return nil
		}

		product, err := q.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !product.Available(item.Color, item.Size, quantity) {
			return ErrNotEnoughStock
		}
		item.Quantity = quantity
		return nil
	})
}

// RemoveItem removes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartView, error) {
	return s.mutate(ctx, userID, func(q repository.Querier, cart *domain.Cart) error {
		if !removeLine(cart, itemID) {
			return domain.ErrCartItemNotFound
		}
		return nil
	})
}

// Clear deletes the cart.
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteCart(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if telemetry.Business != nil {
		telemetry.Business.CartCleared.Inc()
	}
	return nil
}

// ApplyCoupon validates code against the current subtotal and stores it.
func (s *cartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.CouponSummary, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, domain.ErrCouponInvalid
	}

	var summary *domain.CouponSummary
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUser(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		coupon, err := q.GetCouponByCode(ctx, code)
		if errors.Is(err, domain.ErrCouponNotFound) {
			return domain.ErrCouponInvalid
		}
		if err != nil {
			return fmt.Errorf("failed to get coupon: %w", err)
		}

		// Price without any coupon to get the live subtotal
		priced := *cart
		priced.CouponCode = nil
		qt, err := quoteCart(ctx, q, s.policy, &priced, s.now())
		if err != nil {
			return err
		}
		if err := checkCoupon(coupon, userID, qt.breakdown.Subtotal, s.now()); err != nil {
			return err
		}

		cart.CouponCode = &coupon.Code
		if err := q.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		summary = couponSummary(coupon, qt.breakdown.Subtotal)
		return nil
	})

	if telemetry.Business != nil {
		telemetry.Business.CouponApplied.WithLabelValues(couponResult(err)).Inc()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("user_id", userID.String()).Str("coupon", code).Msg("Coupon applied")
	return summary, nil
}

// RemoveCoupon clears the stored coupon. No-op without a cart.
func (s *cartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) error {
	return s.store.InTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUser(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}
		if cart.CouponCode == nil {
			return nil
		}
		cart.CouponCode = nil
		return q.SaveCart(ctx, cart)
	})
}

// SetCoins records the coins the user intends to spend. The amount is
// re-clamped to the live balance whenever the cart is priced.
func (s *cartService) SetCoins(ctx context.Context, userID uuid.UUID, coins int64) (int64, error) {
	if coins < 0 {
		return 0, ErrNegativeCoins
	}

	err := s.store.InTx(ctx, func(q repository.Querier) error {
		var balance int64
		user, err := q.GetUser(ctx, userID)
		switch {
		case err == nil:
			balance = user.Coins
		case errors.Is(err, domain.ErrUserNotFound):
		default:
			return fmt.Errorf("failed to get user: %w", err)
		}
		if coins > balance {
			return domain.ErrInsufficientCoins
		}

		cart, err := q.GetCartByUser(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}
		cart.CoinsToUse = coins
		return q.SaveCart(ctx, cart)
	})
	if err != nil {
		return 0, err
	}
	return coins, nil
}

// mutate loads the user's cart, applies fn and saves the result, all in one
// transaction, and returns the fresh view.
func (s *cartService) mutate(ctx context.Context, userID uuid.UUID, fn func(q repository.Querier, cart *domain.Cart) error) (*domain.CartView, error) {
	var view *domain.CartView
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(q, cart); err != nil {
			return err
		}
		if err := q.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		view, err = s.view(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *cartService) view(ctx context.Context, q repository.Querier, cart *domain.Cart) (*domain.CartView, error) {
	qt, err := quoteCart(ctx, q, s.policy, cart, s.now())
	if err != nil {
		return nil, err
	}

	v := &domain.CartView{
		ID:         cart.ID,
		Items:      qt.lines,
		CouponCode: cart.CouponCode,
		CoinsToUse: cart.CoinsToUse,
	}
	if len(qt.lines) > 0 {
		v.Summary = qt.breakdown
	}
	if qt.couponErr != nil {
		v.CouponError = domain.ErrorMessage(qt.couponErr)
	}
	return v, nil
}

func emptyCartView() *domain.CartView {
	return &domain.CartView{Items: []domain.CartLine{}}
}

func findLine(cart *domain.Cart, productID uuid.UUID, color, size *string) *domain.CartItem {
	for i := range cart.Items {
		if cart.Items[i].SameVariant(productID, color, size) {
			return &cart.Items[i]
		}
	}
	return nil
}

func removeLine(cart *domain.Cart, itemID uuid.UUID) bool {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return true
		}
	}
	return false
}

func couponResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCouponExpired), errors.Is(err, domain.ErrCouponNotYetActive):
		return "expired"
	case errors.Is(err, domain.ErrCouponLimitReached):
		return "limit"
	case errors.Is(err, domain.ErrCouponBelowMinimum):
		return "minimum"
	case errors.Is(err, domain.ErrCouponAlreadyUsed), errors.Is(err, ErrOwnReferralCoupon):
		return "used"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	default:
		return "invalid"
	}
}
