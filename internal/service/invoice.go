package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/identity"
	"github.com/dukerupert/invoicer/internal/notify"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// DefaultDaysUntilDue is used when neither the request nor the configuration
// sets a due-date offset.
const DefaultDaysUntilDue = 7

// Outcome reports how one run of the invoice creation workflow ended.
// It exists for observability and tests; the trigger source does not act on it.
type Outcome string

const (
	// OutcomeSent: invoice sent with status open and reference persisted.
	OutcomeSent Outcome = "sent"
	// OutcomeNotOpen: invoice sent but not open; reference persisted, not retried.
	OutcomeNotOpen Outcome = "not_open"
	// OutcomeRejected: the order request failed validation. No side effects.
	OutcomeRejected Outcome = "rejected"
	// OutcomeNoEmail: the uid did not resolve to an email. No side effects.
	OutcomeNoEmail Outcome = "no_email"
	// OutcomeFailed: a provider, identity or store call failed.
	OutcomeFailed Outcome = "failed"
)

// OrderCreatedEvent is one delivery of the record-created trigger.
// EventID must be stable across redeliveries; every idempotency key derives from it.
type OrderCreatedEvent struct {
	EventID  string
	RecordID string
	Request  domain.OrderRequest
}

// WorkflowConfig holds the workflow's configurable defaults.
type WorkflowConfig struct {
	DaysUntilDue int64
	CreatedBy    string
}

// InvoiceWorkflow turns a newly created order request into a sent invoice
// and writes the invoice reference back onto the record.
type InvoiceWorkflow struct {
	billing   billing.Client
	identity  identity.Resolver
	store     domain.InvoiceRecordStore
	notifier  notify.Publisher
	customers *CustomerResolver
	builder   *InvoiceBuilder
	cfg       WorkflowConfig
	logger    *slog.Logger
}

// NewInvoiceWorkflow creates an InvoiceWorkflow. A nil notifier disables
// notifications.
func NewInvoiceWorkflow(
	client billing.Client,
	store domain.InvoiceRecordStore,
	resolver identity.Resolver,
	notifier notify.Publisher,
	cfg WorkflowConfig,
	logger *slog.Logger,
) *InvoiceWorkflow {
	if cfg.DaysUntilDue <= 0 {
		cfg.DaysUntilDue = DefaultDaysUntilDue
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if resolver == nil {
		resolver = identity.None{}
	}

	return &InvoiceWorkflow{
		billing:   client,
		identity:  resolver,
		store:     store,
		notifier:  notifier,
		customers: NewCustomerResolver(client, cfg.CreatedBy, logger),
		builder:   NewInvoiceBuilder(client, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleOrderCreated runs the workflow for one trigger delivery. It never
// returns an error: failures are logged, reported, and visible afterwards
// only as a record without invoice fields.
func (w *InvoiceWorkflow) HandleOrderCreated(ctx context.Context, ev OrderCreatedEvent) Outcome {
	start := time.Now()
	outcome := w.run(ctx, ev)

	if telemetry.Business != nil {
		telemetry.Business.WorkflowOutcomes.WithLabelValues(string(outcome)).Inc()
		telemetry.Business.WorkflowDuration.Observe(time.Since(start).Seconds())
	}
	return outcome
}

func (w *InvoiceWorkflow) run(ctx context.Context, ev OrderCreatedEvent) Outcome {
	logger := w.logger.With("event_id", ev.EventID, "record_id", ev.RecordID)
	req := ev.Request

	if err := req.Validate(); err != nil {
		for _, verr := range domain.ValidationErrors(err) {
			logger.Error("incorrect order request payload", "error", verr)
		}
		return OutcomeRejected
	}

	logger.Info("received new order request, starting invoice creation")

	email, outcome := w.resolveEmail(ctx, logger, req)
	if outcome != "" {
		return outcome
	}

	customer, err := w.customers.Resolve(ctx, email, req.Currency(), ev.EventID)
	if err != nil {
		w.fail(logger, ev, "error when making a request to the Stripe API", err)
		return OutcomeFailed
	}

	telemetry.AddBreadcrumb("billing", "customer resolved", map[string]interface{}{"customer_id": customer.ID})

	invoice := w.builder.Build(ctx, BuildParams{
		Customer:        customer,
		Items:           req.Items,
		DaysUntilDue:    req.EffectiveDaysUntilDue(w.cfg.DaysUntilDue),
		DefaultTaxRates: req.DefaultTaxRates,
		TransferData:    req.TransferData,
		Description:     req.Description,
		IdempotencyKey:  ev.EventID,
	})
	if invoice == nil {
		logger.Error("error when creating the invoice", "customer_id", customer.ID)
		return OutcomeFailed
	}

	sent, err := w.billing.SendInvoice(ctx, invoice.ID, "invoices-sendInvoice-"+ev.EventID)
	if err != nil {
		w.fail(logger, ev, "error when making a request to the Stripe API", err)
		return OutcomeFailed
	}

	outcome = OutcomeSent
	if sent.Status == domain.StatusOpen {
		logger.Info("sent invoice",
			"stripe_invoice_id", sent.ID,
			"email", email,
			"hosted_url", sent.HostedURL,
		)
		if telemetry.Business != nil {
			telemetry.Business.InvoiceAmount.WithLabelValues(req.Currency()).Observe(float64(orderTotal(req.Items)))
		}
	} else {
		logger.Error("error when creating the invoice",
			"stripe_invoice_id", sent.ID,
			"status", sent.Status,
		)
		telemetry.CaptureMessage("sent invoice is not open", sentry.LevelWarning, map[string]interface{}{
			"event_id":          ev.EventID,
			"stripe_invoice_id": sent.ID,
			"status":            sent.Status,
		})
		outcome = OutcomeNotOpen
	}

	// Dashboard link mode comes from the created invoice.
	ref := domain.InvoiceReference{
		StripeInvoiceID:     sent.ID,
		StripeInvoiceURL:    sent.HostedURL,
		StripeInvoiceRecord: billing.DashboardInvoiceURL(sent.ID, invoice.Livemode),
	}
	if err := w.store.SetInvoiceReference(ctx, ev.RecordID, ref); err != nil {
		w.fail(logger, ev, "failed to write invoice reference", err)
		return OutcomeFailed
	}

	if err := w.notifier.InvoiceSent(ctx, notify.InvoiceSent{
		RecordID:        ev.RecordID,
		EventID:         ev.EventID,
		StripeInvoiceID: sent.ID,
		Status:          sent.Status,
		HostedURL:       sent.HostedURL,
		Livemode:        invoice.Livemode,
		OccurredAt:      time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to publish invoice notification", "error", err)
	}

	return outcome
}

// resolveEmail returns the email to invoice, or a terminal outcome.
func (w *InvoiceWorkflow) resolveEmail(ctx context.Context, logger *slog.Logger, req domain.OrderRequest) (string, Outcome) {
	if req.UID == "" {
		return req.Email, ""
	}

	email, err := w.identity.EmailForUID(ctx, req.UID)
	if errors.Is(err, identity.ErrNoEmail) || (err == nil && email == "") {
		logger.Error("user is missing an email address", "uid", req.UID)
		return "", OutcomeNoEmail
	}
	if err != nil {
		logger.Error("identity lookup failed", "uid", req.UID, "error", err)
		telemetry.CaptureError(err, map[string]interface{}{"uid": req.UID})
		return "", OutcomeFailed
	}
	return email, ""
}

func (w *InvoiceWorkflow) fail(logger *slog.Logger, ev OrderCreatedEvent, msg string, err error) {
	logger.Error(msg, "error", err)
	telemetry.CaptureErrorWithEvent(err, ev.EventID, map[string]interface{}{"record_id": ev.RecordID})
}

func orderTotal(items []domain.OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Amount * item.EffectiveQuantity()
	}
	return total
}
