// Package memory is an in-process implementation of repository.Store. It backs
// local development without Postgres and the service tests. Transactions
// serialize on one lock and apply to a copy of the data set, so a failed
// transaction leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

// Store is a mutex-guarded in-memory data set.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// InTx runs fn against a private copy of the data set and publishes the copy
// only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping always succeeds; it lets the health check treat every store alike.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CoinTransactions returns the coin ledger for a user, oldest first.
func (s *Store) CoinTransactions(userID uuid.UUID) []domain.CoinTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CoinTransaction
	for _, tx := range s.st.coinTx {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func lock[T any](s *Store, fn func(st *state) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func lockErr(s *Store, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return lockErr(s, func(st *state) error { return st.CreateUser(ctx, u) })
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return lock(s, func(st *state) (*domain.User, error) { return st.GetUser(ctx, id) })
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return lock(s, func(st *state) (*domain.User, error) { return st.GetUserByReferralCode(ctx, code) })
}

func (s *Store) SetReferrer(ctx context.Context, userID, referrerID uuid.UUID) error {
	return lockErr(s, func(st *state) error { return st.SetReferrer(ctx, userID, referrerID) })
}

func (s *Store) DeductCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	return lockErr(s, func(st *state) error { return st.DeductCoins(ctx, userID, coins) })
}

func (s *Store) CreditCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	return lockErr(s, func(st *state) error { return st.CreditCoins(ctx, userID, coins) })
}

func (s *Store) RecordCoinTransaction(ctx context.Context, tx *domain.CoinTransaction) error {
	return lockErr(s, func(st *state) error { return st.RecordCoinTransaction(ctx, tx) })
}

func (s *Store) ClaimReward(ctx context.Context, userID uuid.UUID, milestone int) error {
	return lockErr(s, func(st *state) error { return st.ClaimReward(ctx, userID, milestone) })
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	return lockErr(s, func(st *state) error { return st.CreateProduct(ctx, p) })
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return lock(s, func(st *state) (*domain.Product, error) { return st.GetProduct(ctx, id) })
}

func (s *Store) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	return lock(s, func(st *state) (map[uuid.UUID]*domain.Product, error) { return st.GetProducts(ctx, ids) })
}

func (s *Store) DecrementInventory(ctx context.Context, productID uuid.UUID, color, size *string, qty int) error {
	return lockErr(s, func(st *state) error { return st.DecrementInventory(ctx, productID, color, size, qty) })
}

func (s *Store) IncrementSoldCount(ctx context.Context, productID uuid.UUID, qty int) error {
	return lockErr(s, func(st *state) error { return st.IncrementSoldCount(ctx, productID, qty) })
}

func (s *Store) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	return lockErr(s, func(st *state) error { return st.CreateCoupon(ctx, c) })
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return lock(s, func(st *state) (*domain.Coupon, error) { return st.GetCouponByCode(ctx, code) })
}

func (s *Store) GetReferralCoupon(ctx context.Context, ownerID uuid.UUID) (*domain.Coupon, error) {
	return lock(s, func(st *state) (*domain.Coupon, error) { return st.GetReferralCoupon(ctx, ownerID) })
}

func (s *Store) IncrementCouponUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error {
	return lockErr(s, func(st *state) error { return st.IncrementCouponUsage(ctx, couponID, userID, orderID) })
}

func (s *Store) GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return lock(s, func(st *state) (*domain.Cart, error) { return st.GetCartByUser(ctx, userID) })
}

func (s *Store) SaveCart(ctx context.Context, c *domain.Cart) error {
	return lockErr(s, func(st *state) error { return st.SaveCart(ctx, c) })
}

func (s *Store) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	return lockErr(s, func(st *state) error { return st.DeleteCart(ctx, userID) })
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	return lockErr(s, func(st *state) error { return st.CreateOrder(ctx, o) })
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return lock(s, func(st *state) (*domain.Order, error) { return st.GetOrder(ctx, id) })
}

func (s *Store) GetOrderByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return lock(s, func(st *state) (*domain.Order, error) { return st.GetOrderByIntentID(ctx, intentID) })
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID, filter repository.OrderFilter) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrdersByUser(ctx, userID, filter)
}

func (s *Store) ListPendingOrders(ctx context.Context, createdBefore time.Time, after *repository.PendingCursor, limit int) ([]domain.Order, error) {
	return lock(s, func(st *state) ([]domain.Order, error) { return st.ListPendingOrders(ctx, createdBefore, after, limit) })
}

func (s *Store) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	return lockErr(s, func(st *state) error { return st.MarkOrderPaid(ctx, orderID, paidAt) })
}

func (s *Store) MarkOrderPaymentFailed(ctx context.Context, intentID string, status domain.OrderStatus) (bool, error) {
	return lock(s, func(st *state) (bool, error) { return st.MarkOrderPaymentFailed(ctx, intentID, status) })
}

func (s *Store) UpdateOrderFulfillment(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams, deliveredAt *time.Time) error {
	return lockErr(s, func(st *state) error { return st.UpdateOrderFulfillment(ctx, orderID, params, deliveredAt) })
}
