package billing

import (
	"errors"
	"strings"
)

// StripeConfig contains configuration for the Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string

	// Currency for every intent. Default: "inr"
	Currency string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}
