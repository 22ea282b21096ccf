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
// USERS AND LOYALTY
// =============================================================================

// CreateUser inserts the user with its referral milestones in one unit.
func (q *queries) CreateUser(ctx context.Context, u *domain.User) error {
	return q.atomic(ctx, func(tx *queries) error {
		return tx.insertUser(ctx, u)
	})
}

func (q *queries) insertUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Rewards == nil {
		u.Rewards = domain.DefaultReferralRewards()
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, name, coins, referral_code, referred_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Coins, u.ReferralCode, u.ReferredBy, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.Conflict("user.create", "user or referral code already exists")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, r := range u.Rewards {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO referral_rewards (user_id, milestone, reward, claimed)
			VALUES ($1, $2, $3, $4)`,
			u.ID, r.Milestone, r.Reward, r.Claimed,
		); err != nil {
			return fmt.Errorf("failed to insert referral reward: %w", err)
		}
	}
	return nil
}

func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return q.getUser(ctx, `WHERE id = $1`, id)
}

func (q *queries) GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return q.getUser(ctx, `WHERE referral_code = $1`, code)
}

func (q *queries) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := q.db.QueryRow(ctx, `
		SELECT id, name, coins, referral_code, referred_by, created_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Coins, &u.ReferralCode, &u.ReferredBy, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := q.db.Query(ctx, `SELECT id FROM users WHERE referred_by = $1 ORDER BY created_at, id`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	u.Referrals, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan referrals: %w", err)
	}

	rows, err = q.db.Query(ctx, `
		SELECT milestone, reward, claimed FROM referral_rewards
		WHERE user_id = $1 ORDER BY milestone`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	u.Rewards, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReferralReward, error) {
		var r domain.ReferralReward
		err := row.Scan(&r.Milestone, &r.Reward, &r.Claimed)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rewards: %w", err)
	}
	return &u, nil
}

// SetReferrer records the referrer once; a second call fails.
func (q *queries) SetReferrer(ctx context.Context, userID, referrerID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET referred_by = $2
		WHERE id = $1 AND referred_by IS NULL`,
		userID, referrerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := q.GetUser(ctx, userID); err != nil {
			return err
		}
		return domain.ErrAlreadyReferred
	}
	return nil
}

// DeductCoins fails rather than letting the balance go negative.
func (q *queries) DeductCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	if coins <= 0 {
		return nil
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET coins = coins - $2
		WHERE id = $1 AND coins >= $2`,
		userID, coins,
	)
	if err != nil {
		return fmt.Errorf("failed to deduct coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCoins
	}
	return nil
}

func (q *queries) CreditCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET coins = coins + $2 WHERE id = $1`, userID, coins)
	if err != nil {
		return fmt.Errorf("failed to credit coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (q *queries) RecordCoinTransaction(ctx context.Context, tx *domain.CoinTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO coin_transactions (id, user_id, amount, reason, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tx.ID, tx.UserID, tx.Amount, string(tx.Reason), tx.OrderID, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record coin transaction: %w", err)
	}
	return nil
}

// ClaimReward flips claimed false -> true; the loser of a concurrent claim
// sees ErrRewardAlreadyClaimed.
func (q *queries) ClaimReward(ctx context.Context, userID uuid.UUID, milestone int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE referral_rewards SET claimed = true
		WHERE user_id = $1 AND milestone = $2 AND NOT claimed`,
		userID, milestone,
	)
	if err != nil {
		return fmt.Errorf("failed to claim reward: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var claimed bool
	err = q.db.QueryRow(ctx, `
		SELECT claimed FROM referral_rewards WHERE user_id = $1 AND milestone = $2`,
		userID, milestone,
	).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRewardNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check reward: %w", err)
	}
	return domain.ErrRewardAlreadyClaimed
}
