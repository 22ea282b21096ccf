package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe or an in-process mock.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the intent with a client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent. Settlement uses it
	// to verify the charge server side before applying any side effect.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// CancelPaymentIntent cancels an unconfirmed intent. Used to release an
	// intent when the order that references it could not be recorded.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// ParseWebhookEvent verifies the signature header against the configured
	// signing secret and decodes the event.
	ParseWebhookEvent(payload []byte, signature string) (*Event, error)
}

// Payment intent statuses reported by the processor.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// Webhook event types handled by the application.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventPaymentIntentCanceled  = "payment_intent.canceled"
	EventPaymentIntentCreated   = "payment_intent.created"
)

// Metadata keys stamped on every intent.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// Amount is in the smallest currency unit (paise for INR)
	Amount int64

	// Currency code (ISO 4217 lowercase), e.g. "inr"
	Currency string

	// Description appears in the processor dashboard
	Description string

	// Metadata always carries order_id and user_id
	Metadata map[string]string

	// IdempotencyKey prevents duplicate intents on retried requests
	IdempotencyKey string
}

// PaymentIntent is the processor's record of a charge.
type PaymentIntent struct {
	// ID is the processor payment intent ID (pi_...)
	ID string

	// ClientSecret is used by the frontend to confirm payment
	ClientSecret string

	Amount   int64
	Currency string

	// Status: requires_payment_method, processing, succeeded, canceled, etc.
	Status string

	Metadata  map[string]string
	CreatedAt time.Time

	// LastPaymentError contains details if the last attempt failed
	LastPaymentError *PaymentError
}

// Succeeded reports whether the charge completed.
func (pi *PaymentIntent) Succeeded() bool {
	return pi.Status == IntentStatusSucceeded
}

// PaymentError contains details about a failed payment attempt.
type PaymentError struct {
	Code        string // processor error code
	Message     string // human-readable message
	DeclineCode string // reason card was declined (if applicable)
}

// Event is a verified webhook event. PaymentIntent is populated for
// payment_intent.* events.
type Event struct {
	ID            string
	Type          string
	PaymentIntent *PaymentIntent
}
