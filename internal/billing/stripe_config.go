package billing

import (
	"errors"
	"strings"
)

// StripeConfig contains configuration for the Stripe client.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string

	// MaxNetworkRetries is passed to stripe-go. The workflow relies on
	// idempotency keys rather than client retries, so the default is 0.
	MaxNetworkRetries int64

	// BackendURL overrides the API base URL, e.g. for stripe-mock.
	// Empty means api.stripe.com.
	BackendURL string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrInvalidAPIKey
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_") || strings.HasPrefix(c.APIKey, "rk_test_")
}
