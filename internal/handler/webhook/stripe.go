package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/handler"
	"github.com/dukerupert/invoicer/internal/service"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// Reconciler applies a verified invoice event to the stored records.
type Reconciler interface {
	Reconcile(ctx context.Context, payload []byte, signatureHeader string) (service.ReconcileResult, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	reconciler Reconciler
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(reconciler Reconciler) *StripeHandler {
	return &StripeHandler{reconciler: reconciler}
}

// HandleWebhook verifies and reconciles one delivery. The body is read
// unmodified since the signature covers the raw bytes.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger invoice.paid
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.read"

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handler.ErrorResponse(w, r, domain.WrapError(err, domain.ETOOLARGE, op, "Webhook Error: request body too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, op, "Webhook Error: could not read request body"))
		return
	}

	if _, err := h.reconciler.Reconcile(r.Context(), payload, r.Header.Get(SignatureHeader)); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
