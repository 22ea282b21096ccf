// Package repository defines the persistence contract shared by the Postgres
// and in-memory stores. Every mutation that can race with another writer is a
// single conditional update; callers never read-modify-write counters.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
)

// ErrAlreadySettled is returned by MarkOrderPaid when the order is no longer
// payment-pending. Settlement turns it into an idempotent no-op.
var ErrAlreadySettled = errors.New("order already settled")

// Querier is the set of operations available both inside and outside a
// transaction.
type Querier interface {
	// Users and loyalty
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error)
	SetReferrer(ctx context.Context, userID, referrerID uuid.UUID) error
	DeductCoins(ctx context.Context, userID uuid.UUID, coins int64) error
	CreditCoins(ctx context.Context, userID uuid.UUID, coins int64) error
	RecordCoinTransaction(ctx context.Context, tx *domain.CoinTransaction) error
	ClaimReward(ctx context.Context, userID uuid.UUID, milestone int) error

	// Catalog and inventory
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	DecrementInventory(ctx context.Context, productID uuid.UUID, color, size *string, qty int) error
	IncrementSoldCount(ctx context.Context, productID uuid.UUID, qty int) error

	// Coupons
	CreateCoupon(ctx context.Context, c *domain.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	GetReferralCoupon(ctx context.Context, ownerID uuid.UUID) (*domain.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error

	// Carts
	GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	SaveCart(ctx context.Context, c *domain.Cart) error
	DeleteCart(ctx context.Context, userID uuid.UUID) error

	// Orders
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, filter OrderFilter) ([]domain.Order, int, error)
	ListPendingOrders(ctx context.Context, createdBefore time.Time, after *PendingCursor, limit int) ([]domain.Order, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
	MarkOrderPaymentFailed(ctx context.Context, intentID string, status domain.OrderStatus) (bool, error)
	UpdateOrderFulfillment(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams, deliveredAt *time.Time) error
}

// Store is a Querier that can run a function inside a transaction. The
// function's Querier sees its own writes; returning an error rolls back
// every write made through it.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// OrderFilter pages a user's order listing.
type OrderFilter struct {
	Status *domain.OrderStatus
	Limit  int
	Offset int
}

// PendingCursor is the position of the last order in a page of pending
// orders. Pages are ordered by (CreatedAt, ID).
type PendingCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the cursor following o.
func CursorAfter(o *domain.Order) *PendingCursor {
	return &PendingCursor{CreatedAt: o.CreatedAt, ID: o.ID}
}
