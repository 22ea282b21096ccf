// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Fixed demo identities. Send them in X-User-ID to act as these accounts.
var (
	DemoAdminID    = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	DemoCustomerID = uuid.MustParse("00000000-0000-0000-0000-00000000c001")
	DemoFriendID   = uuid.MustParse("00000000-0000-0000-0000-00000000c002")

	DemoTeeID    = uuid.MustParse("00000000-0000-0000-0000-000000000101")
	DemoToteID   = uuid.MustParse("00000000-0000-0000-0000-000000000102")
	DemoHoodieID = uuid.MustParse("00000000-0000-0000-0000-000000000103")
)

// DemoCouponCode is a promotional coupon seeded with the demo catalog.
const DemoCouponCode = "WELCOME10"

// SeedDemoData creates demo accounts, a small catalog and a promotional
// coupon. It is idempotent: if the demo customer exists nothing is written.
func SeedDemoData(ctx context.Context, store repository.Store, logger zerolog.Logger) error {
	_, err := store.GetUser(ctx, DemoCustomerID)
	switch {
	case err == nil:
		logger.Debug().Msg("bootstrap: demo data already present")
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("failed to check demo data: %w", err)
	}

	err = store.InTx(ctx, func(q repository.Querier) error {
		users := []domain.User{
			{ID: DemoAdminID, Name: "Demo Admin", ReferralCode: "ADMIN001"},
			{ID: DemoCustomerID, Name: "Demo Customer", ReferralCode: "DEMO2024", Coins: 250},
			{ID: DemoFriendID, Name: "Demo Friend", ReferralCode: "FRIEND01"},
		}
		for i := range users {
			if err := q.CreateUser(ctx, &users[i]); err != nil {
				return fmt.Errorf("failed to create user %s: %w", users[i].Name, err)
			}
		}

		for _, p := range demoCatalog() {
			if err := q.CreateProduct(ctx, p); err != nil {
				return fmt.Errorf("failed to create product %s: %w", p.Slug, err)
			}
		}

		limit := 1000
		minOrder := int64(50000)
		maxDiscount := int64(20000)
		return q.CreateCoupon(ctx, &domain.Coupon{
			Code:          DemoCouponCode,
			Type:          domain.CouponTypePromotional,
			DiscountType:  domain.DiscountTypePercentage,
			DiscountValue: 10,
			MinOrderValue: &minOrder,
			MaxDiscount:   &maxDiscount,
			UsageLimit:    &limit,
			IsActive:      true,
			Description:   "10% off your first order",
		})
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("admin_id", DemoAdminID.String()).
		Str("customer_id", DemoCustomerID.String()).
		Str("coupon", DemoCouponCode).
		Msg("bootstrap: demo data seeded")
	return nil
}

func demoCatalog() []*domain.Product {
	black, white := "black", "white"
	s, m, l := "S", "M", "L"
	return []*domain.Product{
		{
			ID:       DemoTeeID,
			Name:     "Classic Cotton Tee",
			Slug:     "classic-cotton-tee",
			Price:    59900,
			Images:   []string{"/images/tee.jpg"},
			IsActive: true,
			Inventory: []domain.Variant{
				{Color: &black, Size: &s, Quantity: 20, SKU: "TEE-BLK-S"},
				{Color: &black, Size: &m, Quantity: 20, SKU: "TEE-BLK-M"},
				{Color: &white, Size: &l, Quantity: 5, SKU: "TEE-WHT-L"},
			},
		},
		{
			ID:        DemoToteID,
			Name:      "Canvas Tote",
			Slug:      "canvas-tote",
			Price:     34900,
			Images:    []string{"/images/tote.jpg"},
			IsActive:  true,
			Inventory: []domain.Variant{{Quantity: 50, SKU: "TOTE"}},
		},
		{
			ID:        DemoHoodieID,
			Name:      "Limited Hoodie",
			Slug:      "limited-hoodie",
			Price:     249900,
			Images:    []string{"/images/hoodie.jpg"},
			IsActive:  true,
			Inventory: []domain.Variant{{Size: &m, Quantity: 1, SKU: "HOOD-M"}},
		},
	}
}
