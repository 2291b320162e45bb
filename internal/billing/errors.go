package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
)

var (
	// ErrInvalidAPIKey is returned when the Stripe API key is missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrMalformedEvent is returned when a verified webhook payload does not
	// have the expected event shape.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")
)

// ProviderError wraps a Stripe API error with additional context.
type ProviderError struct {
	Op             string // adapter operation, e.g. "invoices.create"
	Message        string // human-readable error message
	Code           string // Stripe error code (e.g., "resource_missing")
	Type           string // Stripe error type (e.g., "invalid_request_error")
	HTTPStatusCode int
	RequestID      string // Stripe request ID for debugging
	OriginalError  error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s: %s (code: %s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the error is likely transient.
func (e *ProviderError) IsTemporary() bool {
	return e.Code == string(stripe.ErrorCodeRateLimit) || e.HTTPStatusCode >= 500 || e.HTTPStatusCode == 0
}

// IsIdempotencyConflict returns true when the idempotency key was reused
// with different parameters.
func (e *ProviderError) IsIdempotencyConflict() bool {
	return e.Type == string(stripe.ErrorTypeIdempotency)
}

// IsProviderError returns true if err is or wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// wrapStripeError converts an error returned by stripe-go into a ProviderError.
func wrapStripeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &ProviderError{
			Op:             op,
			Message:        stripeErr.Msg,
			Code:           string(stripeErr.Code),
			Type:           string(stripeErr.Type),
			HTTPStatusCode: stripeErr.HTTPStatusCode,
			RequestID:      stripeErr.RequestID,
			OriginalError:  err,
		}
	}

	return &ProviderError{
		Op:            op,
		Message:       err.Error(),
		OriginalError: err,
	}
}
