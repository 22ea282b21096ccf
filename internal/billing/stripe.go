package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	client        *stripe.Client
	webhookSecret string
	currency      string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a Stripe billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "inr"
	}
	return &StripeProvider{
		client:        stripe.NewClient(cfg.APIKey),
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent with automatic payment
// methods enabled.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}

	p := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, p)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return fromStripeIntent(pi), nil
}

// GetPaymentIntent retrieves a Stripe payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	if paymentIntentID == "" {
		return nil, ErrPaymentIntentNotFound
	}
	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, paymentIntentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return fromStripeIntent(pi), nil
}

// CancelPaymentIntent cancels an unconfirmed Stripe payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	_, err := s.client.V1PaymentIntents.Cancel(ctx, paymentIntentID, &stripe.PaymentIntentCancelParams{})
	return wrapStripeError(err)
}

// ParseWebhookEvent verifies a Stripe-Signature header and decodes the event.
func (s *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	return parseStripeEvent(payload, signature, s.webhookSecret)
}

func parseStripeEvent(payload []byte, signature, secret string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("billing: decode payment intent: %w", err)
		}
		out.PaymentIntent = fromStripeIntent(&pi)
	}
	return out, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.Created > 0 {
		out.CreatedAt = time.Unix(pi.Created, 0)
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}
	return out
}
