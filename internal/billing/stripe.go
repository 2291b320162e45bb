package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// StripeClient implements Client using the Stripe API.
type StripeClient struct {
	api *client.API
}

// Compile-time check to ensure StripeClient implements Client.
var _ Client = (*StripeClient)(nil)

// NewStripeClient creates a Stripe-backed billing client.
// The client holds no state beyond its configured backends and is safe for
// concurrent use.
func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// GetBackendWithConfig fills in the URL on the config it is given,
	// so every backend needs its own.
	backendConfig := func() *stripe.BackendConfig {
		bc := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries)}
		if cfg.BackendURL != "" {
			bc.URL = stripe.String(cfg.BackendURL)
		}
		return bc
	}

	api := client.New(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	})

	return &StripeClient{api: api}, nil
}

// CreateCustomer creates a Stripe customer.
func (s *StripeClient) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	p := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	p.Context = ctx
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	c, err := s.api.Customers.New(p)
	if err != nil {
		return nil, wrapStripeError("customers.create", err)
	}

	return toCustomer(c), nil
}

// ListCustomersByEmail lists every Stripe customer with the given email.
func (s *StripeClient) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	p := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	p.Context = ctx

	var customers []Customer
	iter := s.api.Customers.List(p)
	for iter.Next() {
		customers = append(customers, *toCustomer(iter.Customer()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("customers.list", err)
	}

	return customers, nil
}

// CreateInvoiceItem creates a pending Stripe invoice item.
func (s *StripeClient) CreateInvoiceItem(ctx context.Context, params CreateInvoiceItemParams) (*InvoiceItem, error) {
	item := params.Item
	p := &stripe.InvoiceItemParams{
		Customer:   stripe.String(params.CustomerID),
		UnitAmount: stripe.Int64(item.UnitAmount),
		Currency:   stripe.String(item.Currency),
		Quantity:   stripe.Int64(item.Quantity),
	}
	if item.Description != "" {
		p.Description = stripe.String(item.Description)
	}
	if len(item.TaxRates) > 0 {
		p.TaxRates = stripe.StringSlice(item.TaxRates)
	}
	p.Context = ctx
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	ii, err := s.api.InvoiceItems.New(p)
	if err != nil {
		return nil, wrapStripeError("invoiceItems.create", err)
	}

	out := &InvoiceItem{
		ID:       ii.ID,
		Amount:   ii.Amount,
		Currency: string(ii.Currency),
	}
	if ii.Customer != nil {
		out.CustomerID = ii.Customer.ID
	}
	return out, nil
}

// CreateInvoice creates a send_invoice Stripe invoice that collects the
// customer's pending invoice items.
func (s *StripeClient) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	p := &stripe.InvoiceParams{
		Customer:         stripe.String(params.CustomerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(params.DaysUntilDue),
		AutoAdvance:      stripe.Bool(true),
		// Invoices created on API versions after 2022-08-01 exclude pending
		// items unless asked to include them.
		PendingInvoiceItemsBehavior: stripe.String("include"),
	}
	if len(params.DefaultTaxRates) > 0 {
		p.DefaultTaxRates = stripe.StringSlice(params.DefaultTaxRates)
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	if params.TransferData != nil {
		p.TransferData = &stripe.InvoiceTransferDataParams{
			Destination: stripe.String(params.TransferData.Destination),
			Amount:      params.TransferData.Amount,
		}
	}
	p.Context = ctx
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	inv, err := s.api.Invoices.New(p)
	if err != nil {
		return nil, wrapStripeError("invoices.create", err)
	}

	return toInvoice(inv), nil
}

// SendInvoice sends a Stripe invoice to the customer.
func (s *StripeClient) SendInvoice(ctx context.Context, invoiceID string, idempotencyKey string) (*Invoice, error) {
	p := &stripe.InvoiceSendInvoiceParams{}
	p.Context = ctx
	if idempotencyKey != "" {
		p.SetIdempotencyKey(idempotencyKey)
	}

	inv, err := s.api.Invoices.SendInvoice(invoiceID, p)
	if err != nil {
		return nil, wrapStripeError("invoices.sendInvoice", err)
	}

	return toInvoice(inv), nil
}

// ConstructEvent verifies a Stripe-Signature header and parses the event.
func (s *StripeClient) ConstructEvent(payload []byte, signatureHeader string, secret string) (*Event, error) {
	if err := webhook.ValidatePayload(payload, signatureHeader, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return ParseEvent(payload)
}

// eventEnvelope and invoiceObject hold only the fields reconciliation reads,
// so payloads from newer API versions still decode.
type eventEnvelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode bool   `json:"livemode"`
	Data     *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type invoiceObject struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	HostedInvoiceURL string          `json:"hosted_invoice_url"`
	Livemode         bool            `json:"livemode"`
	Customer         json.RawMessage `json:"customer"`
}

// customerID accepts both the unexpanded id and an expanded customer.
func (o invoiceObject) customerID() string {
	if len(o.Customer) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(o.Customer, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(o.Customer, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

// ParseEvent decodes an already verified webhook payload.
// The data object is decoded as an invoice when it carries an id.
func ParseEvent(payload []byte) (*Event, error) {
	var raw eventEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("%w: could not find event.type", ErrMalformedEvent)
	}
	if raw.Data == nil || len(raw.Data.Object) == 0 || string(raw.Data.Object) == "null" {
		return nil, fmt.Errorf("%w: could not find event.data.object", ErrMalformedEvent)
	}

	event := &Event{
		ID:       raw.ID,
		Type:     raw.Type,
		Livemode: raw.Livemode,
	}

	var obj invoiceObject
	if err := json.Unmarshal(raw.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if obj.ID != "" {
		event.Invoice = &Invoice{
			ID:         obj.ID,
			CustomerID: obj.customerID(),
			Status:     obj.Status,
			HostedURL:  obj.HostedInvoiceURL,
			Livemode:   obj.Livemode,
		}
	}

	return event, nil
}

func toCustomer(c *stripe.Customer) *Customer {
	return &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Currency: string(c.Currency),
		Livemode: c.Livemode,
	}
}

func toInvoice(inv *stripe.Invoice) *Invoice {
	out := &Invoice{
		ID:        inv.ID,
		Status:    string(inv.Status),
		HostedURL: inv.HostedInvoiceURL,
		Livemode:  inv.Livemode,
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	return out
}
