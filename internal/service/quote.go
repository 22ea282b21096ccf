package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
)

// cartQuote is a cart joined with live catalog data and priced with the
// owner's current coin balance.
type cartQuote struct {
	lines     []domain.CartLine
	products  map[uuid.UUID]*domain.Product
	coupon    *domain.Coupon
	couponErr error
	balance   int64
	breakdown domain.PriceBreakdown
}

// quoteCart prices cart. Lines whose product is missing or inactive are
// dropped. A stored coupon that no longer validates contributes no discount
// and is reported through couponErr.
func quoteCart(ctx context.Context, q repository.Querier, policy pricing.Policy, cart *domain.Cart, now time.Time) (*cartQuote, error) {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := q.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	qt := &cartQuote{products: products, lines: make([]domain.CartLine, 0, len(cart.Items))}
	items := make([]pricing.LineItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.IsActive {
			continue
		}
		items = append(items, pricing.LineItem{UnitPrice: p.Price, Quantity: it.Quantity})
		qt.lines = append(qt.lines, domain.CartLine{
			ID:        it.ID,
			ProductID: p.ID,
			Name:      p.Name,
			Slug:      p.Slug,
			Image:     p.PrimaryImage(),
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Color:     it.Color,
			Size:      it.Size,
			LineTotal: p.Price * int64(it.Quantity),
		})
	}

	user, err := q.GetUser(ctx, cart.UserID)
	switch {
	case err == nil:
		qt.balance = user.Coins
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	subtotal := pricing.Subtotal(items)
	if cart.CouponCode != nil {
		c, err := q.GetCouponByCode(ctx, *cart.CouponCode)
		switch {
		case errors.Is(err, domain.ErrCouponNotFound):
			qt.couponErr = domain.ErrCouponInvalid
		case err != nil:
			return nil, fmt.Errorf("failed to load coupon: %w", err)
		default:
			if verr := checkCoupon(c, cart.UserID, subtotal, now); verr != nil {
				qt.couponErr = verr
			} else {
				qt.coupon = c
			}
		}
	}

	qt.breakdown = pricing.Calculate(policy, pricing.Input{
		Items:       items,
		Coupon:      qt.coupon,
		CoinsToUse:  cart.CoinsToUse,
		CoinBalance: qt.balance,
	})
	return qt, nil
}

// checkCoupon runs the coupon's own validation and then the per-user rules.
func checkCoupon(c *domain.Coupon, userID uuid.UUID, orderValue int64, now time.Time) error {
	if err := c.Validate(orderValue, now); err != nil {
		return err
	}
	if c.IsReferral() && *c.OwnerID == userID {
		return ErrOwnReferralCoupon
	}
	if c.RedeemedBy(userID) {
		return domain.ErrCouponAlreadyUsed
	}
	return nil
}

// couponSummary describes c as applied to subtotal.
func couponSummary(c *domain.Coupon, subtotal int64) *domain.CouponSummary {
	return &domain.CouponSummary{
		Code:               c.Code,
		Type:               c.Type,
		DiscountType:       c.DiscountType,
		DiscountValue:      c.DiscountValue,
		MaxDiscount:        c.MaxDiscount,
		CalculatedDiscount: pricing.CouponDiscount(c, subtotal),
	}
}
