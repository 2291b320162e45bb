package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/notify"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// ReconcileResult says what an acknowledged webhook did.
type ReconcileResult string

const (
	ResultUpdated ReconcileResult = "updated"
	ResultIgnored ReconcileResult = "ignored"
)

// Reconciler applies signed invoice lifecycle webhooks to the matching record.
type Reconciler struct {
	billing  billing.Client
	store    domain.InvoiceRecordStore
	notifier notify.Publisher
	secret   string
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler verifying events with secret.
// A nil notifier disables notifications.
func NewReconciler(client billing.Client, store domain.InvoiceRecordStore, notifier notify.Publisher, secret string, logger *slog.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Reconciler{
		billing:  client,
		store:    store,
		notifier: notifier,
		secret:   secret,
		logger:   logger,
	}
}

// Reconcile verifies and applies one webhook delivery.
//
// Errors carry domain codes: EUNAUTHORIZED for a bad signature, EINVALID for
// a malformed event, EINTERNAL when the invoice does not match exactly one
// record or the store fails. No record is modified when an error is returned.
// Applying the same event twice leaves the same final status.
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte, signatureHeader string) (ReconcileResult, error) {
	const op = "webhook.reconcile"
	start := time.Now()

	event, err := r.billing.ConstructEvent(payload, signatureHeader, r.secret)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			r.logger.Error("webhook signature verification failed, is the webhook secret configured correctly?", "error", err)
			recordWebhookFailure("signature")
			return "", domain.WrapError(err, domain.EUNAUTHORIZED, op, "Webhook Error: Invalid Secret")
		}
		r.logger.Error("malformed event", "error", err)
		recordWebhookFailure("malformed")
		return "", domain.WrapError(err, domain.EINVALID, op, "Webhook Error: "+err.Error())
	}

	logger := r.logger.With("stripe_event_id", event.ID, "event_type", event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
		}()
	}

	if !domain.IsRelevantInvoiceEvent(event.Type) {
		logger.Info("ignoring event because it isn't a relevant part of the invoice lifecycle")
		recordWebhookProcessed(ResultIgnored)
		return ResultIgnored, nil
	}

	if event.Invoice == nil {
		err := fmt.Errorf("%w: could not find event.data.object.id", billing.ErrMalformedEvent)
		logger.Error("malformed event", "error", err)
		recordWebhookFailure("malformed")
		return "", domain.WrapError(err, domain.EINVALID, op, "Webhook Error: "+err.Error())
	}

	logger = logger.With("stripe_invoice_id", event.Invoice.ID)
	logger.Info("received new invoice event, starting processing")

	records, err := r.store.FindByStripeInvoiceID(ctx, event.Invoice.ID)
	if err != nil {
		logger.Error("failed to query invoice records", "error", err)
		recordWebhookFailure("store")
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"stripe_invoice_id": event.Invoice.ID})
		return "", domain.Internal(err, op, "Invoice lookup failed.")
	}

	if len(records) != 1 {
		err := fmt.Errorf("%w: expected 1 invoice with ID %q, but found %d", ErrRecordCountMismatch, event.Invoice.ID, len(records))
		logger.Error("could not find invoice", "error", err, "record_count", len(records))
		recordWebhookFailure("record_count")
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"event_type": event.Type})
		return "", domain.WrapError(err, domain.EINTERNAL, op, "Invoice not found.")
	}

	record := records[0]
	status := domain.StatusForEvent(event.Type, event.Invoice.Status)

	if err := r.store.SetInvoiceStatus(ctx, record.ID, domain.StatusUpdate{
		Status:    status,
		LastEvent: event.Type,
	}); err != nil {
		logger.Error("failed to update invoice status", "record_id", record.ID, "error", err)
		recordWebhookFailure("store")
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"record_id": record.ID})
		return "", domain.Internal(err, op, "Invoice update failed.")
	}

	logger.Info("updated invoice status", "record_id", record.ID, "status", status)
	recordWebhookProcessed(ResultUpdated)

	if err := r.notifier.InvoiceStatusChanged(ctx, notify.InvoiceStatusChanged{
		RecordID:        record.ID,
		StripeInvoiceID: event.Invoice.ID,
		Status:          status,
		EventType:       event.Type,
		OccurredAt:      time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to publish status notification", "error", err)
	}

	return ResultUpdated, nil
}

func recordWebhookFailure(errorType string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(errorType).Inc()
	}
}

func recordWebhookProcessed(result ReconcileResult) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(string(result)).Inc()
	}
}
