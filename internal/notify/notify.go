// Package notify announces persisted invoice changes to other services.
package notify

import (
	"context"
	"time"
)

// Subjects published to.
const (
	SubjectInvoiceSent          = "invoices.sent"
	SubjectInvoiceStatusChanged = "invoices.status_changed"
)

// InvoiceSent is published after the creation workflow writes an invoice
// reference onto a record.
type InvoiceSent struct {
	RecordID        string    `json:"record_id"`
	EventID         string    `json:"event_id"`
	StripeInvoiceID string    `json:"stripe_invoice_id"`
	Status          string    `json:"status"`
	HostedURL       string    `json:"hosted_url,omitempty"`
	Livemode        bool      `json:"livemode"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// InvoiceStatusChanged is published after the webhook reconciler updates a record.
type InvoiceStatusChanged struct {
	RecordID        string    `json:"record_id"`
	StripeInvoiceID string    `json:"stripe_invoice_id"`
	Status          string    `json:"status"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher announces invoice changes. Publishing is best effort; callers
// log failures and carry on.
type Publisher interface {
	InvoiceSent(ctx context.Context, msg InvoiceSent) error
	InvoiceStatusChanged(ctx context.Context, msg InvoiceStatusChanged) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) InvoiceSent(ctx context.Context, msg InvoiceSent) error { return nil }

func (Noop) InvoiceStatusChanged(ctx context.Context, msg InvoiceStatusChanged) error { return nil }
