package domain

import (
	"context"
	"errors"
	"time"
)

// Invoice statuses written to InvoiceRecord.StripeInvoiceStatus.
// All but StatusPaymentFailed are the provider's own invoice statuses.
const (
	StatusDraft         = "draft"
	StatusOpen          = "open"
	StatusPaid          = "paid"
	StatusUncollectible = "uncollectible"
	StatusVoid          = "void"
	StatusPaymentFailed = "payment_failed"
)

// ErrRecordNotFound is returned by stores when no record has the requested id.
var ErrRecordNotFound = errors.New("invoice record not found")

// InvoiceRecord is the persisted order request plus the invoice state
// written back by the workflow and the webhook reconciler.
type InvoiceRecord struct {
	ID string `json:"id" firestore:"-"`

	OrderRequest

	StripeInvoiceID     string `json:"stripeInvoiceId,omitempty" firestore:"stripeInvoiceId,omitempty"`
	StripeInvoiceURL    string `json:"stripeInvoiceUrl,omitempty" firestore:"stripeInvoiceUrl,omitempty"`
	StripeInvoiceRecord string `json:"stripeInvoiceRecord,omitempty" firestore:"stripeInvoiceRecord,omitempty"`
	StripeInvoiceStatus string `json:"stripeInvoiceStatus,omitempty" firestore:"stripeInvoiceStatus,omitempty"`
	LastStripeEvent     string `json:"lastStripeEvent,omitempty" firestore:"lastStripeEvent,omitempty"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// HasInvoice reports whether the workflow has written an invoice reference.
func (r InvoiceRecord) HasInvoice() bool {
	return r.StripeInvoiceID != ""
}

// InvoiceReference is the set of fields the creation workflow writes
// once an invoice has been sent.
type InvoiceReference struct {
	StripeInvoiceID     string
	StripeInvoiceURL    string
	StripeInvoiceRecord string
}

// StatusUpdate is the set of fields the webhook reconciler writes.
type StatusUpdate struct {
	Status    string
	LastEvent string
}

// InvoiceRecordStore is the persisted-record surface used by the
// creation workflow and the webhook reconciler.
type InvoiceRecordStore interface {
	// CreateRecord stores a new order request. Implementations that drive the
	// creation workflow from a queue enqueue the trigger in the same write.
	CreateRecord(ctx context.Context, req OrderRequest) (*InvoiceRecord, error)

	// GetRecord returns the record with the given id or ErrRecordNotFound.
	GetRecord(ctx context.Context, id string) (*InvoiceRecord, error)

	// FindByStripeInvoiceID returns every record referencing the invoice.
	// More than one result is an inconsistency the caller must handle.
	FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) ([]InvoiceRecord, error)

	// SetInvoiceReference writes only the invoice reference fields.
	SetInvoiceReference(ctx context.Context, id string, ref InvoiceReference) error

	// SetInvoiceStatus writes only stripeInvoiceStatus and lastStripeEvent.
	SetInvoiceStatus(ctx context.Context, id string, update StatusUpdate) error
}
