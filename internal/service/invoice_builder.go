package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// BuildParams describes the invoice to create for a resolved customer.
type BuildParams struct {
	Customer        *billing.Customer
	Items           []domain.OrderItem
	DaysUntilDue    int64
	DefaultTaxRates []string
	TransferData    *domain.TransferData
	Description     string

	// IdempotencyKey scopes every remote create; normally the triggering event id.
	IdempotencyKey string
}

// InvoiceBuilder creates the invoice items and the invoice for an order.
type InvoiceBuilder struct {
	billing billing.Client
	logger  *slog.Logger
}

// NewInvoiceBuilder creates an InvoiceBuilder.
func NewInvoiceBuilder(client billing.Client, logger *slog.Logger) *InvoiceBuilder {
	return &InvoiceBuilder{billing: client, logger: logger}
}

// Build creates one invoice item per order item concurrently, waits for all
// of them, then creates the invoice. It returns nil when any provider call
// fails; the failure is logged here and not returned. An invoice is never
// created unless every item was.
func (b *InvoiceBuilder) Build(ctx context.Context, p BuildParams) *billing.Invoice {
	logger := b.logger.With(
		"idempotency_key", p.IdempotencyKey,
		"customer_id", p.Customer.ID,
	)

	// No shared cancellation: Wait returns only after every item call has finished.
	var g errgroup.Group
	for i, item := range p.Items {
		g.Go(func() error {
			_, err := b.billing.CreateInvoiceItem(ctx, billing.CreateInvoiceItemParams{
				CustomerID: p.Customer.ID,
				Item: billing.LineItem{
					UnitAmount:  item.Amount,
					Currency:    item.Currency,
					Quantity:    item.EffectiveQuantity(),
					Description: item.Description,
					TaxRates:    item.TaxRates,
				},
				IdempotencyKey: fmt.Sprintf("invoiceItems-create-%s-%d", p.IdempotencyKey, i),
			})
			if err != nil {
				return fmt.Errorf("invoice item %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.logProviderError(logger, "error when creating invoice items", err)
		return nil
	}

	params := billing.CreateInvoiceParams{
		CustomerID:      p.Customer.ID,
		DaysUntilDue:    p.DaysUntilDue,
		DefaultTaxRates: p.DefaultTaxRates,
		Description:     p.Description,
		IdempotencyKey:  "invoices-create-" + p.IdempotencyKey,
	}
	if p.TransferData != nil {
		params.TransferData = &billing.TransferData{
			Destination: p.TransferData.Destination,
			Amount:      p.TransferData.Amount,
		}
	}

	invoice, err := b.billing.CreateInvoice(ctx, params)
	if err != nil {
		b.logProviderError(logger, "error when creating the invoice", err)
		return nil
	}

	telemetry.AddBreadcrumb("billing", "invoice created", map[string]interface{}{"stripe_invoice_id": invoice.ID})
	logger.Info("created invoice",
		"stripe_invoice_id", invoice.ID,
		"item_count", len(p.Items),
		"livemode", invoice.Livemode,
		"dashboard_url", billing.DashboardInvoiceURL(invoice.ID, invoice.Livemode),
	)

	return invoice
}

func (b *InvoiceBuilder) logProviderError(logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err}
	var pe *billing.ProviderError
	if errors.As(err, &pe) {
		attrs = append(attrs,
			"provider_op", pe.Op,
			"provider_code", pe.Code,
			"provider_status", pe.HTTPStatusCode,
			"provider_request_id", pe.RequestID,
			"provider_temporary", pe.IsTemporary(),
			"idempotency_conflict", pe.IsIdempotencyConflict(),
		)
	}
	logger.Error(msg, attrs...)
	telemetry.CaptureError(err, map[string]interface{}{"stage": "invoice_builder"})
}
