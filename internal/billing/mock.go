package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing and local development.
// Simulates payment flows without calling the Stripe API. Safe for
// concurrent use.
type MockProvider struct {
	// CreatePaymentIntentFunc allows customizing payment intent creation behavior
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntentFunc allows customizing payment intent retrieval behavior
	GetPaymentIntentFunc func(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// ParseWebhookEventFunc allows customizing webhook verification behavior
	ParseWebhookEventFunc func(payload []byte, signature string) (*Event, error)

	mu             sync.Mutex
	paymentIntents map[string]*PaymentIntent
	callLog        []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		paymentIntents: make(map[string]*PaymentIntent),
	}
}

func (m *MockProvider) record(call string) {
	m.mu.Lock()
	m.callLog = append(m.callLog, call)
	m.mu.Unlock()
}

// CallLog returns the method calls made so far, for test assertions.
func (m *MockProvider) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callLog...)
}

// CreatePaymentIntent creates a mock payment intent.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.Amount, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Same idempotency key returns the same intent
	if params.IdempotencyKey != "" {
		for _, pi := range m.paymentIntents {
			if pi.Metadata["idempotency_key"] == params.IdempotencyKey {
				return copyIntent(pi), nil
			}
		}
	}

	metadata := make(map[string]string, len(params.Metadata)+1)
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	if params.IdempotencyKey != "" {
		metadata["idempotency_key"] = params.IdempotencyKey
	}

	id := "pi_" + uuid.New().String()
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String(),
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       IntentStatusRequiresPaymentMethod,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	m.paymentIntents[pi.ID] = pi
	return copyIntent(pi), nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("GetPaymentIntent(%s)", paymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, paymentIntentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.paymentIntents[paymentIntentID]
	if !exists {
		return nil, ErrPaymentIntentNotFound
	}
	return copyIntent(pi), nil
}

// CancelPaymentIntent cancels a mock payment intent. Like Stripe, it refuses
// intents that already succeeded or were canceled.
func (m *MockProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	m.record(fmt.Sprintf("CancelPaymentIntent(%s)", paymentIntentID))
	m.mu.Lock()
	pi, exists := m.paymentIntents[paymentIntentID]
	terminal := exists && (pi.Status == IntentStatusSucceeded || pi.Status == IntentStatusCanceled)
	m.mu.Unlock()
	if terminal {
		return ErrIntentNotCancelable
	}
	return m.setStatus(paymentIntentID, IntentStatusCanceled, nil)
}

// ParseWebhookEvent decodes a mock webhook event. Without an override the
// payload must be a JSON event in Stripe's envelope format; the signature is
// not checked.
func (m *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	m.record("ParseWebhookEvent")

	if m.ParseWebhookEventFunc != nil {
		return m.ParseWebhookEventFunc(payload, signature)
	}
	return decodeUnsignedEvent(payload)
}

// SimulateSucceededPayment updates a payment intent to succeeded status.
// Used in tests to simulate successful payment confirmation.
func (m *MockProvider) SimulateSucceededPayment(paymentIntentID string) error {
	return m.setStatus(paymentIntentID, IntentStatusSucceeded, nil)
}

// SimulateFailedPayment updates a payment intent to failed status.
// Used in tests to simulate payment failures.
func (m *MockProvider) SimulateFailedPayment(paymentIntentID string, errorCode string, errorMessage string) error {
	return m.setStatus(paymentIntentID, IntentStatusRequiresPaymentMethod, &PaymentError{
		Code:    errorCode,
		Message: errorMessage,
	})
}

func (m *MockProvider) setStatus(paymentIntentID, status string, lastErr *PaymentError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.paymentIntents[paymentIntentID]
	if !exists {
		return ErrPaymentIntentNotFound
	}
	pi.Status = status
	pi.LastPaymentError = lastErr
	return nil
}

func copyIntent(pi *PaymentIntent) *PaymentIntent {
	out := *pi
	out.Metadata = make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		out.Metadata[k] = v
	}
	if pi.LastPaymentError != nil {
		e := *pi.LastPaymentError
		out.LastPaymentError = &e
	}
	return &out
}
