package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/kirana/internal/domain"
)

// =============================================================================
// COUPONS
// =============================================================================

const couponSelect = `
	SELECT c.id, c.code, c.type, c.discount_type, c.discount_value, c.min_order_value,
	       c.max_discount, c.usage_count, c.usage_limit, c.valid_from, c.valid_until,
	       c.owner_id, c.is_active, c.description, c.created_at, c.updated_at,
	       COALESCE((SELECT array_agg(r.user_id ORDER BY r.redeemed_at)
	                 FROM coupon_redemptions r WHERE r.coupon_id = c.id), '{}')
	FROM coupons c `

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	var typ, discountType string
	err := row.Scan(
		&c.ID, &c.Code, &typ, &discountType, &c.DiscountValue, &c.MinOrderValue,
		&c.MaxDiscount, &c.UsageCount, &c.UsageLimit, &c.ValidFrom, &c.ValidUntil,
		&c.OwnerID, &c.IsActive, &c.Description, &c.CreatedAt, &c.UpdatedAt,
		&c.UsedBy,
	)
	if err != nil {
		return nil, err
	}
	c.Type = domain.CouponType(typ)
	c.DiscountType = domain.DiscountType(discountType)
	return &c, nil
}

func (q *queries) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO coupons (id, code, type, discount_type, discount_value, min_order_value,
		                     max_discount, usage_count, usage_limit, valid_from, valid_until,
		                     owner_id, is_active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Code, string(c.Type), string(c.DiscountType), c.DiscountValue, c.MinOrderValue,
		c.MaxDiscount, c.UsageCount, c.UsageLimit, c.ValidFrom, c.ValidUntil,
		c.OwnerID, c.IsActive, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrCouponCodeExists
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}
	return nil
}

func (q *queries) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(q.db.QueryRow(ctx, couponSelect+`WHERE c.code = $1`, code))
	if err != nil {
		return nil, scanErr(err, domain.ErrCouponNotFound, "coupon")
	}
	return c, nil
}

func (q *queries) GetReferralCoupon(ctx context.Context, ownerID uuid.UUID) (*domain.Coupon, error) {
	c, err := scanCoupon(q.db.QueryRow(ctx, couponSelect+`WHERE c.type = 'referral' AND c.owner_id = $1`, ownerID))
	if err != nil {
		return nil, scanErr(err, domain.ErrReferralCouponMissing, "referral coupon")
	}
	return c, nil
}

// IncrementCouponUsage records one redemption by userID. The usage limit
// and the one-redemption-per-user rule are both enforced by the statement.
func (q *queries) IncrementCouponUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		WITH bumped AS (
			UPDATE coupons SET usage_count = usage_count + 1, updated_at = now()
			WHERE id = $1
			  AND (usage_limit IS NULL OR usage_count < usage_limit)
			  AND NOT EXISTS (
			      SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)
			RETURNING id
		)
		INSERT INTO coupon_redemptions (coupon_id, user_id, order_id)
		SELECT id, $2, $3 FROM bumped`,
		couponID, userID, orderID,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrCouponAlreadyUsed
		}
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var redeemed bool
	err = q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)
		FROM coupons WHERE id = $1`,
		couponID, userID,
	).Scan(&redeemed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrCouponNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check coupon: %w", err)
	}
	if redeemed {
		return domain.ErrCouponAlreadyUsed
	}
	return domain.ErrCouponLimitReached
}
