package billing

import (
	"time"

	"github.com/stripe/stripe-go/v74/webhook"
)

// SignWebhookPayload builds a Stripe-Signature header value for payload, as
// Stripe signs webhook deliveries. Used by tests and by the CLI to replay
// events against a local server.
func SignWebhookPayload(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}
