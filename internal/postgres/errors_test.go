package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), func() error {
			calls++
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		})
		assert.Error(t, err)
		assert.Equal(t, len(retryDelays)+1, calls)
	})

	t.Run("does not retry business errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("insufficient stock")
		err := withRetry(context.Background(), func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := withRetry(ctx, func() error {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unique violation on a named constraint", func(t *testing.T) {
		err := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_referral_code_key"}
		assert.True(t, isUniqueViolation(err, ""))
		assert.True(t, isUniqueViolation(err, "users_referral_code_key"))
		assert.False(t, isUniqueViolation(err, "other"))
	})
}
