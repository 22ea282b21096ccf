package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrOrderNotFound         = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrPaymentNotSucceeded   = &Error{Code: EPAYMENT, Message: "Payment not completed"}
	ErrPaymentIntentMismatch = &Error{Code: EINVALID, Message: "Payment intent does not belong to this order"}
	ErrOrderNotPaid          = &Error{Code: ECONFLICT, Message: "Order payment has not completed"}
	ErrInvalidOrderStatus    = &Error{Code: EINVALID, Message: "Invalid order status"}
)

// PaymentStatus tracks the charge attached to an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ShippingStatus is the carrier-facing state of an order.
type ShippingStatus string

const (
	ShippingStatusPending   ShippingStatus = "pending"
	ShippingStatusPacked    ShippingStatus = "packed"
	ShippingStatusShipped   ShippingStatus = "shipped"
	ShippingStatusInTransit ShippingStatus = "in_transit"
	ShippingStatusDelivered ShippingStatus = "delivered"
)

// Valid reports whether s is a known shipping status.
func (s ShippingStatus) Valid() bool {
	switch s {
	case ShippingStatusPending, ShippingStatusPacked, ShippingStatusShipped, ShippingStatusInTransit, ShippingStatusDelivered:
		return true
	}
	return false
}

// Order is created pending at checkout and settled exactly once.
// Items are a frozen snapshot of product data at checkout time.
type Order struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"userId"`
	Items           []OrderItem    `json:"items"`
	ShippingAddress Address        `json:"shippingAddress"`
	ContactNumber   string         `json:"contactNumber"`
	Payment         PaymentInfo    `json:"paymentInfo"`
	Price           PriceBreakdown `json:"priceBreakdown"`
	CouponCode      *string        `json:"couponCode,omitempty"`
	CoinsUsed       int64          `json:"coinsUsed"`
	Status          OrderStatus    `json:"orderStatus"`
	ShippingStatus  ShippingStatus `json:"shippingStatus"`
	TrackingNumber  *string        `json:"trackingNumber,omitempty"`
	TrackingURL     *string        `json:"trackingUrl,omitempty"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// OrderItem is a denormalized order line.
type OrderItem struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	Color     *string   `json:"color,omitempty"`
	Size      *string   `json:"size,omitempty"`
}

// PaymentInfo links an order to its processor payment intent.
type PaymentInfo struct {
	IntentID string        `json:"id"`
	Status   PaymentStatus `json:"status"`
	Method   PaymentMethod `json:"method"`
	Amount   int64         `json:"amount"`
	PaidAt   *time.Time    `json:"paidAt,omitempty"`
}

// IsSettled reports whether the order can no longer be paid. A failed
// attempt leaves the order open since the shopper may retry the same intent.
func (o *Order) IsSettled() bool {
	if o.Status != OrderStatusPending {
		return true
	}
	return o.Payment.Status != PaymentStatusPending && o.Payment.Status != PaymentStatusFailed
}

// OrderService reads orders and applies admin status changes.
type OrderService interface {
	// ListOrders returns the user's orders, newest first.
	ListOrders(ctx context.Context, userID uuid.UUID, params ListOrdersParams) (*OrderPage, error)

	// GetOrder returns one of the user's orders.
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)

	// UpdateOrderStatus applies an admin fulfillment update to a paid order.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, params UpdateOrderStatusParams) (*Order, error)
}

// ListOrdersParams filters and pages an order listing.
type ListOrdersParams struct {
	Page   int
	Limit  int
	Status *OrderStatus
}

// OrderPage is a page of orders with pagination metadata.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes a page within a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// UpdateOrderStatusParams is an admin fulfillment update.
type UpdateOrderStatusParams struct {
	OrderStatus    *OrderStatus
	ShippingStatus *ShippingStatus
	TrackingNumber *string
	TrackingURL    *string
}

// SettlementService converts a confirmed payment into a settled order.
type SettlementService interface {
	// Settle verifies the payment with the processor and atomically applies
	// every settlement side effect. Settling an already settled order is a no-op.
	Settle(ctx context.Context, params SettleParams) (*SettleResult, error)

	// MarkPaymentFailed records a failed or canceled payment on a pending order.
	MarkPaymentFailed(ctx context.Context, intentID string, canceled bool) error
}

// SettleParams identifies the order to settle. Client confirmations carry
// OrderID and UserID; processor events carry only PaymentIntentID.
type SettleParams struct {
	OrderID         uuid.UUID
	UserID          uuid.UUID
	PaymentIntentID string
	Source          string
}

// Settlement sources, used for logs and metrics.
const (
	SettleSourceClient    = "client"
	SettleSourceWebhook   = "webhook"
	SettleSourceReconcile = "reconcile"
)

// SettleResult reports the order after settlement.
type SettleResult struct {
	Order          *Order
	AlreadySettled bool
}
