package memory

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

type redemptionKey struct {
	couponID uuid.UUID
	userID   uuid.UUID
}

// state is the full data set. Its methods assume the caller holds the store
// lock and always hand out copies.
type state struct {
	users       map[uuid.UUID]*domain.User
	coinTx      []domain.CoinTransaction
	products    map[uuid.UUID]*domain.Product
	coupons     map[string]*domain.Coupon
	redemptions map[redemptionKey]uuid.UUID
	carts       map[uuid.UUID]*domain.Cart
	orders      map[uuid.UUID]*domain.Order
}

func newState() *state {
	return &state{
		users:       make(map[uuid.UUID]*domain.User),
		products:    make(map[uuid.UUID]*domain.Product),
		coupons:     make(map[string]*domain.Coupon),
		redemptions: make(map[redemptionKey]uuid.UUID),
		carts:       make(map[uuid.UUID]*domain.Cart),
		orders:      make(map[uuid.UUID]*domain.Order),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = cloneUser(v)
	}
	c.coinTx = slices.Clone(st.coinTx)
	for k, v := range st.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range st.coupons {
		c.coupons[k] = cloneCoupon(v)
	}
	for k, v := range st.redemptions {
		c.redemptions[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = cloneCart(v)
	}
	for k, v := range st.orders {
		c.orders[k] = cloneOrder(v)
	}
	return c
}

var _ repository.Querier = (*state)(nil)

// =============================================================================
// USERS
// =============================================================================

func (st *state) CreateUser(ctx context.Context, u *domain.User) error {
	if _, ok := st.users[u.ID]; ok {
		return domain.Conflict("user.create", "user already exists")
	}
	for _, existing := range st.users {
		if existing.ReferralCode == u.ReferralCode {
			return domain.Conflict("user.create", "referral code already exists")
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Rewards == nil {
		u.Rewards = domain.DefaultReferralRewards()
	}
	st.users[u.ID] = cloneUser(u)
	return nil
}

func (st *state) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := cloneUser(u)
	out.Referrals = st.referralsOf(id)
	return out, nil
}

// referralsOf derives the referral list from referred_by back-references,
// oldest first.
func (st *state) referralsOf(id uuid.UUID) []uuid.UUID {
	var referred []*domain.User
	for _, u := range st.users {
		if u.ReferredBy != nil && *u.ReferredBy == id {
			referred = append(referred, u)
		}
	}
	sort.Slice(referred, func(i, j int) bool {
		return referred[i].CreatedAt.Before(referred[j].CreatedAt)
	})
	ids := make([]uuid.UUID, len(referred))
	for i, u := range referred {
		ids[i] = u.ID
	}
	return ids
}

func (st *state) GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	for _, u := range st.users {
		if u.ReferralCode == code {
			return st.GetUser(ctx, u.ID)
		}
	}
	return nil, domain.ErrUserNotFound
}

func (st *state) SetReferrer(ctx context.Context, userID, referrerID uuid.UUID) error {
	u, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.ReferredBy != nil {
		return domain.ErrAlreadyReferred
	}
	u.ReferredBy = &referrerID
	return nil
}

func (st *state) DeductCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	if coins <= 0 {
		return nil
	}
	u, ok := st.users[userID]
	if !ok || u.Coins < coins {
		return domain.ErrInsufficientCoins
	}
	u.Coins -= coins
	return nil
}

func (st *state) CreditCoins(ctx context.Context, userID uuid.UUID, coins int64) error {
	u, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Coins += coins
	return nil
}

func (st *state) RecordCoinTransaction(ctx context.Context, tx *domain.CoinTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	st.coinTx = append(st.coinTx, *tx)
	return nil
}

func (st *state) ClaimReward(ctx context.Context, userID uuid.UUID, milestone int) error {
	u, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	r := u.FindReward(milestone)
	if r == nil {
		return domain.ErrRewardNotFound
	}
	if r.Claimed {
		return domain.ErrRewardAlreadyClaimed
	}
	r.Claimed = true
	return nil
}

// =============================================================================
// PRODUCTS / INVENTORY
// =============================================================================

func (st *state) CreateProduct(ctx context.Context, p *domain.Product) error {
	if _, ok := st.products[p.ID]; ok {
		return domain.Conflict("product.create", "product already exists")
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	st.products[p.ID] = cloneProduct(p)
	return nil
}

func (st *state) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (st *state) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	out := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out[id] = cloneProduct(p)
		}
	}
	return out, nil
}

func (st *state) DecrementInventory(ctx context.Context, productID uuid.UUID, color, size *string, qty int) error {
	p, ok := st.products[productID]
	if !ok {
		return domain.ErrInsufficientStock
	}
	v := p.FindVariant(color, size)
	if v == nil || v.Quantity < qty {
		return domain.ErrInsufficientStock
	}
	v.Quantity -= qty
	p.UpdatedAt = time.Now()
	return nil
}

func (st *state) IncrementSoldCount(ctx context.Context, productID uuid.UUID, qty int) error {
	p, ok := st.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.SoldCount += qty
	return nil
}

// =============================================================================
// COUPONS
// =============================================================================

func (st *state) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	if _, ok := st.coupons[c.Code]; ok {
		return domain.ErrCouponCodeExists
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	st.coupons[c.Code] = cloneCoupon(c)
	return nil
}

func (st *state) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, ok := st.coupons[code]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	return cloneCoupon(c), nil
}

func (st *state) GetReferralCoupon(ctx context.Context, ownerID uuid.UUID) (*domain.Coupon, error) {
	for _, c := range st.coupons {
		if c.Type == domain.CouponTypeReferral && c.OwnerID != nil && *c.OwnerID == ownerID {
			return cloneCoupon(c), nil
		}
	}
	return nil, domain.ErrReferralCouponMissing
}

func (st *state) IncrementCouponUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error {
	var c *domain.Coupon
	for _, candidate := range st.coupons {
		if candidate.ID == couponID {
			c = candidate
			break
		}
	}
	if c == nil {
		return domain.ErrCouponNotFound
	}
	key := redemptionKey{couponID: couponID, userID: userID}
	if _, ok := st.redemptions[key]; ok {
		return domain.ErrCouponAlreadyUsed
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return domain.ErrCouponLimitReached
	}
	c.UsageCount++
	c.UsedBy = append(c.UsedBy, userID)
	c.UpdatedAt = time.Now()
	st.redemptions[key] = orderID
	return nil
}

// =============================================================================
// CARTS
// =============================================================================

func (st *state) GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	c, ok := st.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (st *state) SaveCart(ctx context.Context, c *domain.Cart) error {
	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if existing, ok := st.carts[c.UserID]; ok && existing.ID != c.ID {
		return domain.Conflict("cart.save", "user already has a cart")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	for i := range c.Items {
		if c.Items[i].ID == uuid.Nil {
			c.Items[i].ID = uuid.New()
		}
		if c.Items[i].AddedAt.IsZero() {
			c.Items[i].AddedAt = now
		}
	}
	st.carts[c.UserID] = cloneCart(c)
	return nil
}

func (st *state) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	delete(st.carts, userID)
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (st *state) CreateOrder(ctx context.Context, o *domain.Order) error {
	if _, ok := st.orders[o.ID]; ok {
		return domain.Conflict("order.create", "order already exists")
	}
	for _, existing := range st.orders {
		if existing.Payment.IntentID == o.Payment.IntentID {
			return domain.Conflict("order.create", "payment intent already linked to an order")
		}
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	st.orders[o.ID] = cloneOrder(o)
	return nil
}

func (st *state) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (st *state) GetOrderByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	for _, o := range st.orders {
		if o.Payment.IntentID == intentID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (st *state) ListOrdersByUser(ctx context.Context, userID uuid.UUID, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var matched []*domain.Order
	for _, o := range st.orders {
		if o.UserID != userID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	out := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *cloneOrder(o))
	}
	return out, total, nil
}

func (st *state) ListPendingOrders(ctx context.Context, createdBefore time.Time, after *repository.PendingCursor, limit int) ([]domain.Order, error) {
	var matched []*domain.Order
	for _, o := range st.orders {
		if o.Payment.Status != domain.PaymentStatusPending || !o.CreatedAt.Before(createdBefore) {
			continue
		}
		if after != nil && !cursorLess(after.CreatedAt, after.ID, o.CreatedAt, o.ID) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return cursorLess(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]domain.Order, len(matched))
	for i, o := range matched {
		out[i] = *cloneOrder(o)
	}
	return out, nil
}

// cursorLess orders by creation time, then by id bytes as Postgres does.
func cursorLess(at time.Time, id uuid.UUID, bt time.Time, bid uuid.UUID) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return bytes.Compare(id[:], bid[:]) < 0
}

func (st *state) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	o, ok := st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.IsSettled() {
		return repository.ErrAlreadySettled
	}
	o.Payment.Status = domain.PaymentStatusCompleted
	o.Payment.PaidAt = &paidAt
	o.Status = domain.OrderStatusProcessing
	o.UpdatedAt = paidAt
	return nil
}

func (st *state) MarkOrderPaymentFailed(ctx context.Context, intentID string, status domain.OrderStatus) (bool, error) {
	for _, o := range st.orders {
		if o.Payment.IntentID != intentID {
			continue
		}
		if o.Status != domain.OrderStatusPending {
			return false, nil
		}
		if o.Payment.Status == domain.PaymentStatusFailed && status == domain.OrderStatusPending {
			return false, nil
		}
		if o.Payment.Status != domain.PaymentStatusPending && o.Payment.Status != domain.PaymentStatusFailed {
			return false, nil
		}
		o.Payment.Status = domain.PaymentStatusFailed
		o.Status = status
		o.UpdatedAt = time.Now()
		return true, nil
	}
	return false, domain.ErrOrderNotFound
}

func (st *state) UpdateOrderFulfillment(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams, deliveredAt *time.Time) error {
	o, ok := st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if params.OrderStatus != nil {
		o.Status = *params.OrderStatus
	}
	if params.ShippingStatus != nil {
		o.ShippingStatus = *params.ShippingStatus
	}
	if params.TrackingNumber != nil {
		o.TrackingNumber = params.TrackingNumber
	}
	if params.TrackingURL != nil {
		o.TrackingURL = params.TrackingURL
	}
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	o.UpdatedAt = time.Now()
	return nil
}
