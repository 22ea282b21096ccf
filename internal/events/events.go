// Package events publishes order lifecycle events after the database commit.
// Publishing is best effort: a failure is logged and counted but never rolls
// back or fails the operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subjects.
const (
	SubjectOrderSettled       = "orders.settled"
	SubjectOrderPaymentFailed = "orders.payment_failed"
)

// OrderSettled is emitted once per order when settlement commits.
type OrderSettled struct {
	OrderID         uuid.UUID `json:"orderId"`
	UserID          uuid.UUID `json:"userId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	Total           int64     `json:"total"`
	CoinsUsed       int64     `json:"coinsUsed"`
	CouponCode      *string   `json:"couponCode,omitempty"`
	Source          string    `json:"source"`
	SettledAt       time.Time `json:"settledAt"`
}

// OrderPaymentFailed is emitted when a pending order's payment fails or is
// canceled.
type OrderPaymentFailed struct {
	PaymentIntentID string    `json:"paymentIntentId"`
	Canceled        bool      `json:"canceled"`
	FailedAt        time.Time `json:"failedAt"`
}

// Publisher sends domain events to subscribers.
type Publisher interface {
	OrderSettled(ctx context.Context, e OrderSettled) error
	OrderPaymentFailed(ctx context.Context, e OrderPaymentFailed) error
	Close() error
}

// Nop discards every event. Used when NATS_URL is not configured.
type Nop struct{}

func (Nop) OrderSettled(context.Context, OrderSettled) error             { return nil }
func (Nop) OrderPaymentFailed(context.Context, OrderPaymentFailed) error { return nil }
func (Nop) Close() error                                                 { return nil }
