package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockClient is an in-memory billing client for testing.
// It replays results for repeated idempotency keys the way Stripe does, so
// redelivery scenarios can be asserted on the stored entities. Safe for
// concurrent use.
type MockClient struct {
	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// ListCustomersByEmailFunc allows customizing customer lookup behavior
	ListCustomersByEmailFunc func(ctx context.Context, email string) ([]Customer, error)

	// CreateInvoiceItemFunc allows customizing invoice item creation behavior
	CreateInvoiceItemFunc func(ctx context.Context, params CreateInvoiceItemParams) (*InvoiceItem, error)

	// CreateInvoiceFunc allows customizing invoice creation behavior
	CreateInvoiceFunc func(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// SendInvoiceFunc allows customizing invoice sending behavior
	SendInvoiceFunc func(ctx context.Context, invoiceID string, idempotencyKey string) (*Invoice, error)

	// ConstructEventFunc allows customizing webhook verification behavior
	ConstructEventFunc func(payload []byte, signatureHeader string, secret string) (*Event, error)

	// Livemode is copied onto every created entity
	Livemode bool

	// Customers stores created customers by ID
	Customers map[string]*Customer

	// InvoiceItems stores created invoice items by ID
	InvoiceItems map[string]*InvoiceItem

	// Invoices stores created invoices by ID
	Invoices map[string]*Invoice

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu          sync.Mutex
	idempotent  map[string]interface{}
	pending     map[string][]string // customer ID -> pending invoice item IDs
	invoiceRefs map[string][]string // invoice ID -> invoice item IDs
}

// Compile-time check to ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock billing client.
func NewMockClient() *MockClient {
	return &MockClient{
		Customers:    make(map[string]*Customer),
		InvoiceItems: make(map[string]*InvoiceItem),
		Invoices:     make(map[string]*Invoice),
		CallLog:      []string{},
		idempotent:   make(map[string]interface{}),
		pending:      make(map[string][]string),
		invoiceRefs:  make(map[string][]string),
	}
}

func (m *MockClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

// replay returns the stored result for an idempotency key, if any.
func (m *MockClient) replay(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}
	v, ok := m.idempotent[key]
	return v, ok
}

func (m *MockClient) remember(key string, v interface{}) {
	if key != "" {
		m.idempotent[key] = v
	}
}

// CreateCustomer creates a mock customer.
func (m *MockClient) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.record(fmt.Sprintf("CreateCustomer(%s)", params.Email))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.replay(params.IdempotencyKey); ok {
		c := *v.(*Customer)
		return &c, nil
	}

	customer := &Customer{
		ID:       "cus_" + uuid.New().String()[:8],
		Email:    params.Email,
		Livemode: m.Livemode,
	}
	m.Customers[customer.ID] = customer
	m.remember(params.IdempotencyKey, customer)

	c := *customer
	return &c, nil
}

// ListCustomersByEmail returns stored customers with the given email.
func (m *MockClient) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	m.record(fmt.Sprintf("ListCustomersByEmail(%s)", email))

	if m.ListCustomersByEmailFunc != nil {
		return m.ListCustomersByEmailFunc(ctx, email)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Customer
	for _, c := range m.Customers {
		if c.Email == email {
			out = append(out, *c)
		}
	}
	return out, nil
}

// CreateInvoiceItem creates a mock pending invoice item. Like Stripe, the
// first item billed to a customer fixes the customer's currency.
func (m *MockClient) CreateInvoiceItem(ctx context.Context, params CreateInvoiceItemParams) (*InvoiceItem, error) {
	m.record(fmt.Sprintf("CreateInvoiceItem(%s, %d %s)", params.CustomerID, params.Item.UnitAmount, params.Item.Currency))

	if m.CreateInvoiceItemFunc != nil {
		return m.CreateInvoiceItemFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.replay(params.IdempotencyKey); ok {
		ii := *v.(*InvoiceItem)
		return &ii, nil
	}

	customer, ok := m.Customers[params.CustomerID]
	if !ok {
		return nil, &ProviderError{Op: "invoiceItems.create", Message: "No such customer: " + params.CustomerID, Code: "resource_missing", HTTPStatusCode: 400}
	}
	if customer.Currency == "" {
		customer.Currency = params.Item.Currency
	}

	item := &InvoiceItem{
		ID:         "ii_" + uuid.New().String()[:8],
		CustomerID: params.CustomerID,
		Amount:     params.Item.UnitAmount * params.Item.Quantity,
		Currency:   params.Item.Currency,
	}
	m.InvoiceItems[item.ID] = item
	m.pending[params.CustomerID] = append(m.pending[params.CustomerID], item.ID)
	m.remember(params.IdempotencyKey, item)

	ii := *item
	return &ii, nil
}

// CreateInvoice creates a mock draft invoice that takes the customer's
// pending items.
func (m *MockClient) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	m.record(fmt.Sprintf("CreateInvoice(%s, %d)", params.CustomerID, params.DaysUntilDue))

	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.replay(params.IdempotencyKey); ok {
		inv := *v.(*Invoice)
		return &inv, nil
	}

	invoice := &Invoice{
		ID:         "in_" + uuid.New().String()[:8],
		CustomerID: params.CustomerID,
		Status:     "draft",
		Livemode:   m.Livemode,
	}
	m.Invoices[invoice.ID] = invoice
	m.invoiceRefs[invoice.ID] = m.pending[params.CustomerID]
	delete(m.pending, params.CustomerID)
	m.remember(params.IdempotencyKey, invoice)

	inv := *invoice
	return &inv, nil
}

// SendInvoice marks a mock invoice open and gives it a hosted URL.
func (m *MockClient) SendInvoice(ctx context.Context, invoiceID string, idempotencyKey string) (*Invoice, error) {
	m.record(fmt.Sprintf("SendInvoice(%s)", invoiceID))

	if m.SendInvoiceFunc != nil {
		return m.SendInvoiceFunc(ctx, invoiceID, idempotencyKey)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.replay(idempotencyKey); ok {
		inv := *v.(*Invoice)
		return &inv, nil
	}

	invoice, ok := m.Invoices[invoiceID]
	if !ok {
		return nil, &ProviderError{Op: "invoices.sendInvoice", Message: "No such invoice: " + invoiceID, Code: "resource_missing", HTTPStatusCode: 404}
	}
	invoice.Status = "open"
	invoice.HostedURL = "https://invoice.stripe.com/i/" + invoiceID
	m.remember(idempotencyKey, invoice)

	inv := *invoice
	return &inv, nil
}

// ConstructEvent parses a mock webhook payload without checking the signature.
func (m *MockClient) ConstructEvent(payload []byte, signatureHeader string, secret string) (*Event, error) {
	m.record("ConstructEvent")

	if m.ConstructEventFunc != nil {
		return m.ConstructEventFunc(payload, signatureHeader, secret)
	}

	return ParseEvent(payload)
}

// InvoiceItemIDs returns the items attached to a mock invoice.
func (m *MockClient) InvoiceItemIDs(invoiceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.invoiceRefs[invoiceID]...)
}

// Calls returns a copy of the call log.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}
