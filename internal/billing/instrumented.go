package billing

import (
	"context"
	"time"

	"github.com/dukerupert/invoicer/internal/telemetry"
)

// Instrumented wraps a Client and records call latency in
// telemetry.Business.StripeAPILatency when business metrics are enabled.
type Instrumented struct {
	next Client
}

// Compile-time check to ensure Instrumented implements Client.
var _ Client = (*Instrumented)(nil)

// NewInstrumented wraps next.
func NewInstrumented(next Client) *Instrumented {
	return &Instrumented{next: next}
}

func observe(operation string, start time.Time) {
	if telemetry.Business == nil {
		return
	}
	telemetry.Business.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (c *Instrumented) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	defer observe("create_customer", time.Now())
	return c.next.CreateCustomer(ctx, params)
}

func (c *Instrumented) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	defer observe("list_customers", time.Now())
	return c.next.ListCustomersByEmail(ctx, email)
}

func (c *Instrumented) CreateInvoiceItem(ctx context.Context, params CreateInvoiceItemParams) (*InvoiceItem, error) {
	defer observe("create_invoice_item", time.Now())
	return c.next.CreateInvoiceItem(ctx, params)
}

func (c *Instrumented) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	defer observe("create_invoice", time.Now())
	return c.next.CreateInvoice(ctx, params)
}

func (c *Instrumented) SendInvoice(ctx context.Context, invoiceID string, idempotencyKey string) (*Invoice, error) {
	defer observe("send_invoice", time.Now())
	return c.next.SendInvoice(ctx, invoiceID, idempotencyKey)
}

// ConstructEvent is local work and is not timed.
func (c *Instrumented) ConstructEvent(payload []byte, signatureHeader string, secret string) (*Event, error) {
	return c.next.ConstructEvent(payload, signatureHeader, secret)
}
