package billing

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string            `json:"id"`
			Amount           int64             `json:"amount"`
			Currency         string            `json:"currency"`
			Status           string            `json:"status"`
			Metadata         map[string]string `json:"metadata"`
			LastPaymentError *struct {
				Code        string `json:"code"`
				Message     string `json:"message"`
				DeclineCode string `json:"decline_code"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// decodeUnsignedEvent parses an event envelope without signature checks.
// Only the mock provider uses it.
func decodeUnsignedEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("billing: decode event: %w", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("billing: decode event: missing type")
	}

	out := &Event{ID: raw.ID, Type: raw.Type}
	if strings.HasPrefix(raw.Type, "payment_intent.") {
		obj := raw.Data.Object
		out.PaymentIntent = &PaymentIntent{
			ID:       obj.ID,
			Amount:   obj.Amount,
			Currency: obj.Currency,
			Status:   obj.Status,
			Metadata: obj.Metadata,
		}
		if obj.LastPaymentError != nil {
			out.PaymentIntent.LastPaymentError = &PaymentError{
				Code:        obj.LastPaymentError.Code,
				Message:     obj.LastPaymentError.Message,
				DeclineCode: obj.LastPaymentError.DeclineCode,
			}
		}
	}
	return out, nil
}
