package billing

import (
	"context"
	"fmt"
)

// Client defines the billing provider operations used by the invoice workflow
// and the webhook reconciler. Every create call takes a caller-supplied
// idempotency key so a redelivered trigger has at most one remote effect.
type Client interface {
	// CreateCustomer creates a billing customer.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// ListCustomersByEmail returns every customer registered with the email.
	// A customer may exist once per billing currency.
	ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error)

	// CreateInvoiceItem creates a pending invoice item on the customer.
	CreateInvoiceItem(ctx context.Context, params CreateInvoiceItemParams) (*InvoiceItem, error)

	// CreateInvoice creates a send_invoice invoice collecting the customer's
	// pending items.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// SendInvoice finalizes (if needed) and emails the invoice.
	SendInvoice(ctx context.Context, invoiceID string, idempotencyKey string) (*Invoice, error)

	// ConstructEvent verifies the webhook signature header against secret and
	// parses the payload. Returns ErrInvalidWebhookSignature or
	// ErrMalformedEvent (wrapped) on failure.
	ConstructEvent(payload []byte, signatureHeader string, secret string) (*Event, error)
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}

// Customer represents a billing customer.
type Customer struct {
	ID       string
	Email    string
	Currency string // empty until the customer has been billed once
	Livemode bool
}

// LineItem is one invoice line as sent to the provider.
type LineItem struct {
	// UnitAmount is the price per unit in the smallest currency unit.
	UnitAmount  int64
	Currency    string
	Quantity    int64
	Description string
	TaxRates    []string
}

// CreateInvoiceItemParams contains parameters for creating an invoice item.
type CreateInvoiceItemParams struct {
	CustomerID     string
	Item           LineItem
	IdempotencyKey string
}

// InvoiceItem references a created invoice item.
type InvoiceItem struct {
	ID         string
	CustomerID string
	Amount     int64
	Currency   string
}

// TransferData is the optional connected-account split for an invoice.
type TransferData struct {
	Destination string
	Amount      *int64
}

// CreateInvoiceParams contains parameters for creating an invoice.
type CreateInvoiceParams struct {
	CustomerID      string
	DaysUntilDue    int64
	DefaultTaxRates []string
	TransferData    *TransferData
	Description     string
	IdempotencyKey  string
}

// Invoice represents a provider invoice.
type Invoice struct {
	ID         string
	CustomerID string
	Status     string // draft, open, paid, uncollectible, void
	HostedURL  string
	Livemode   bool
}

// Event is a verified webhook event whose data object is an invoice.
// Invoice is nil when the event's object could not be read as an invoice;
// callers only inspect it for invoice lifecycle events.
type Event struct {
	ID       string
	Type     string
	Livemode bool
	Invoice  *Invoice
}

// DashboardInvoiceURL returns the provider dashboard link for an invoice.
func DashboardInvoiceURL(invoiceID string, livemode bool) string {
	return fmt.Sprintf("https://dashboard.stripe.com%s/invoices/%s", dashboardPrefix(livemode), invoiceID)
}

// DashboardCustomerURL returns the provider dashboard link for a customer.
func DashboardCustomerURL(customerID string, livemode bool) string {
	return fmt.Sprintf("https://dashboard.stripe.com%s/customers/%s", dashboardPrefix(livemode), customerID)
}

func dashboardPrefix(livemode bool) string {
	if livemode {
		return ""
	}
	return "/test"
}
