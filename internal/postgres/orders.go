package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

// =============================================================================
// ORDERS
// =============================================================================

const orderSelect = `
	SELECT id, user_id, shipping_address, contact_number, payment_intent_id, payment_status,
	       payment_method, payment_amount, paid_at, subtotal, shipping, tax, coupon_discount,
	       coins_discount, total, coupon_code, coins_used, order_status, shipping_status,
	       tracking_number, tracking_url, delivered_at, created_at, updated_at
	FROM orders `

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var paymentStatus, method, orderStatus, shippingStatus string
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddress, &o.ContactNumber, &o.Payment.IntentID, &paymentStatus,
		&method, &o.Payment.Amount, &o.Payment.PaidAt, &o.Price.Subtotal, &o.Price.Shipping, &o.Price.Tax,
		&o.Price.CouponDiscount, &o.Price.CoinsDiscount, &o.Price.Total, &o.CouponCode, &o.CoinsUsed,
		&orderStatus, &shippingStatus, &o.TrackingNumber, &o.TrackingURL, &o.DeliveredAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Payment.Status = domain.PaymentStatus(paymentStatus)
	o.Payment.Method = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(orderStatus)
	o.ShippingStatus = domain.ShippingStatus(shippingStatus)
	return &o, nil
}

// CreateOrder inserts the order and its items together; a failed item
// insert leaves no order row behind.
func (q *queries) CreateOrder(ctx context.Context, o *domain.Order) error {
	return q.atomic(ctx, func(tx *queries) error {
		return tx.insertOrder(ctx, o)
	})
}

func (q *queries) insertOrder(ctx context.Context, o *domain.Order) error {
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now

	_, err := q.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, shipping_address, contact_number, payment_intent_id,
		                    payment_status, payment_method, payment_amount, paid_at, subtotal,
		                    shipping, tax, coupon_discount, coins_discount, total, coupon_code,
		                    coins_used, order_status, shipping_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		o.ID, o.UserID, o.ShippingAddress, o.ContactNumber, o.Payment.IntentID,
		string(o.Payment.Status), string(o.Payment.Method), o.Payment.Amount, o.Payment.PaidAt, o.Price.Subtotal,
		o.Price.Shipping, o.Price.Tax, o.Price.CouponDiscount, o.Price.CoinsDiscount, o.Price.Total, o.CouponCode,
		o.CoinsUsed, string(o.Status), string(o.ShippingStatus), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.Conflict("order.create", "order or payment intent already exists")
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, it := range o.Items {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, image, price, quantity, color, size)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, i, it.ProductID, it.Name, it.Image, it.Price, it.Quantity, it.Color, it.Size,
		); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (q *queries) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return q.getOrder(ctx, `WHERE id = $1`, id)
}

func (q *queries) GetOrderByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return q.getOrder(ctx, `WHERE payment_intent_id = $1`, intentID)
}

func (q *queries) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, orderSelect+where, arg))
	if err != nil {
		return nil, scanErr(err, domain.ErrOrderNotFound, "order")
	}
	if err := q.loadOrderItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (q *queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var total int
	if err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE user_id = $1 AND ($2::text IS NULL OR order_status = $2)`,
		userID, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	orders, err := q.listOrders(ctx, `
		WHERE user_id = $1 AND ($2::text IS NULL OR order_status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`,
		userID, status, limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListPendingOrders returns a page of payment-pending orders created before
// the cutoff, ordered by (created_at, id) and starting after the cursor.
func (q *queries) ListPendingOrders(ctx context.Context, createdBefore time.Time, after *repository.PendingCursor, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		afterAt *time.Time
		afterID uuid.UUID
	)
	if after != nil {
		afterAt, afterID = &after.CreatedAt, after.ID
	}
	return q.listOrders(ctx, `
		WHERE payment_status = 'pending' AND created_at < $1
		  AND ($2::timestamptz IS NULL OR (created_at, id) > ($2::timestamptz, $3::uuid))
		ORDER BY created_at, id
		LIMIT $4`,
		createdBefore, afterAt, afterID, limit,
	)
}

func (q *queries) listOrders(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	rows, err := q.db.Query(ctx, orderSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	ptrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	if err := q.loadOrderItems(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]domain.Order, len(ptrs))
	for i, o := range ptrs {
		out[i] = *o
	}
	return out, nil
}

func (q *queries) loadOrderItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	rows, err := q.db.Query(ctx, `
		SELECT order_id, product_id, name, image, price, quantity, color, size
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID uuid.UUID
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Image, &it.Price, &it.Quantity, &it.Color, &it.Size); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}

// MarkOrderPaid is the settlement guard: only an open order (payment
// pending or failed, order pending) transitions, and only once.
func (q *queries) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'completed', paid_at = $2, order_status = 'processing', updated_at = $2
		WHERE id = $1 AND order_status = 'pending' AND payment_status IN ('pending', 'failed')`,
		orderID, paidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := q.GetOrder(ctx, orderID); err != nil {
		return err
	}
	return repository.ErrAlreadySettled
}

func (q *queries) MarkOrderPaymentFailed(ctx context.Context, intentID string, status domain.OrderStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'failed', order_status = $2, updated_at = now()
		WHERE payment_intent_id = $1 AND order_status = 'pending'
		  AND (payment_status = 'pending' OR (payment_status = 'failed' AND $2 = 'cancelled'))`,
		intentID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := q.GetOrderByIntentID(ctx, intentID); err != nil {
		return false, err
	}
	return false, nil
}

func (q *queries) UpdateOrderFulfillment(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams, deliveredAt *time.Time) error {
	var orderStatus, shippingStatus *string
	if params.OrderStatus != nil {
		s := string(*params.OrderStatus)
		orderStatus = &s
	}
	if params.ShippingStatus != nil {
		s := string(*params.ShippingStatus)
		shippingStatus = &s
	}

	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET order_status    = COALESCE($2, order_status),
		    shipping_status = COALESCE($3, shipping_status),
		    tracking_number = COALESCE($4, tracking_number),
		    tracking_url    = COALESCE($5, tracking_url),
		    delivered_at    = COALESCE($6, delivered_at),
		    updated_at      = now()
		WHERE id = $1`,
		orderID, orderStatus, shippingStatus, params.TrackingNumber, params.TrackingURL, deliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
