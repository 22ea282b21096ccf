package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

var (
	// ErrInvalidAPIKey is returned when the Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrPaymentIntentNotFound is returned when payment intent does not exist.
	ErrPaymentIntentNotFound = errors.New("billing: payment intent not found")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrIdempotencyConflict is returned when idempotency key matches a different request.
	ErrIdempotencyConflict = errors.New("billing: idempotency key conflict")

	// ErrAmountTooSmall is returned when payment amount is below the processor minimum.
	ErrAmountTooSmall = errors.New("billing: amount too small")

	// ErrIntentNotCancelable is returned when canceling an intent that already
	// succeeded or was canceled.
	ErrIntentNotCancelable = errors.New("billing: payment intent cannot be canceled")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message        string // Human-readable error message
	Code           string // Stripe error code (e.g., "card_declined")
	DeclineCode    string // Card decline reason (if applicable)
	HTTPStatusCode int    // HTTP status code from Stripe
	RequestID      string // Stripe request ID for debugging
	OriginalError  error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined returns true if error is due to card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.HTTPStatusCode >= 500
}

// wrapStripeError converts SDK errors into billing errors. Well known codes
// map onto the package sentinels.
func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("billing: %w", err)
	}

	switch string(stripeErr.Code) {
	case "resource_missing":
		return ErrPaymentIntentNotFound
	case "idempotency_key_in_use":
		return ErrIdempotencyConflict
	case "amount_too_small":
		return ErrAmountTooSmall
	}
	if stripeErr.HTTPStatusCode == 401 {
		return ErrInvalidAPIKey
	}

	return &StripeError{
		Message:        stripeErr.Msg,
		Code:           string(stripeErr.Code),
		DeclineCode:    string(stripeErr.DeclineCode),
		HTTPStatusCode: stripeErr.HTTPStatusCode,
		RequestID:      stripeErr.RequestID,
		OriginalError:  err,
	}
}
