package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/kirana/internal/domain"
)

// =============================================================================
// CARTS
// =============================================================================

func (q *queries) GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var c domain.Cart
	err := q.db.QueryRow(ctx, `
		SELECT id, user_id, coupon_code, coins_to_use, created_at, updated_at
		FROM carts WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &c.CouponCode, &c.CoinsToUse, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, domain.ErrCartNotFound, "cart")
	}

	rows, err := q.db.Query(ctx, `
		SELECT id, product_id, quantity, color, size, added_at
		FROM cart_items WHERE cart_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartItem, error) {
		var it domain.CartItem
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Color, &it.Size, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart items: %w", err)
	}
	return &c, nil
}

// SaveCart upserts the cart row and replaces its lines.
func (q *queries) SaveCart(ctx context.Context, c *domain.Cart) error {
	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := q.db.Exec(ctx, `
		INSERT INTO carts (id, user_id, coupon_code, coins_to_use, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET coupon_code = EXCLUDED.coupon_code,
		    coins_to_use = EXCLUDED.coins_to_use,
		    updated_at = EXCLUDED.updated_at`,
		c.ID, c.UserID, c.CouponCode, c.CoinsToUse, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.Conflict("cart.save", "user already has a cart")
		}
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if _, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	for i := range c.Items {
		it := &c.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.AddedAt.IsZero() {
			it.AddedAt = now
		}
		if _, err := q.db.Exec(ctx, `
			INSERT INTO cart_items (id, cart_id, position, product_id, quantity, color, size, added_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, c.ID, i, it.ProductID, it.Quantity, it.Color, it.Size, it.AddedAt,
		); err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}

func (q *queries) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
