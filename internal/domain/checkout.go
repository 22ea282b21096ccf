package domain

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// CHECKOUT DOMAIN TYPES
// =============================================================================

var (
	ErrPaymentProcessor     = &Error{Code: EUNAVAILABLE, Message: "Payment processing failed"}
	ErrInvalidPaymentMethod = &Error{Code: EINVALID, Message: "Unsupported payment method"}
)

// PaymentMethod is the tag the shopper picked at checkout.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodCOD  PaymentMethod = "cod"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodCOD:
		return true
	}
	return false
}

// PriceBreakdown is the calculator output. All amounts are paise.
type PriceBreakdown struct {
	Subtotal       int64 `json:"subtotal"`
	Shipping       int64 `json:"shipping"`
	Tax            int64 `json:"tax"`
	CouponDiscount int64 `json:"couponDiscount"`
	CoinsDiscount  int64 `json:"coinsDiscount"`
	Total          int64 `json:"total"`
}

// CoinsUsed is the number of coins the coin discount consumes.
func (b PriceBreakdown) CoinsUsed() int64 {
	return b.CoinsDiscount / PaisePerCoin
}

// PaisePerCoin is the value of one loyalty coin: one rupee.
const PaisePerCoin = 100

// CheckoutService turns a cart into a pending order backed by a payment intent.
type CheckoutService interface {
	// PlaceOrder validates the cart, prices it, opens a payment intent and
	// records a pending order. No order exists if any step fails.
	PlaceOrder(ctx context.Context, userID uuid.UUID, params PlaceOrderParams) (*PlaceOrderResult, error)
}

// PlaceOrderParams carries the shopper supplied checkout details.
type PlaceOrderParams struct {
	ShippingAddress Address
	ContactNumber   string
	PaymentMethod   PaymentMethod
}

// PlaceOrderResult is returned to the client to complete payment.
type PlaceOrderResult struct {
	Order        *Order
	ClientSecret string
}

// Address is a postal shipping address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}
