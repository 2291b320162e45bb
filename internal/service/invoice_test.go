package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/identity"
	"github.com/dukerupert/invoicer/internal/memstore"
	"github.com/dukerupert/invoicer/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workflowFixture struct {
	billing  *billing.MockClient
	store    *memstore.Store
	notifier *notify.Recorder
	workflow *InvoiceWorkflow
}

func newWorkflowFixture(resolver identity.Resolver) *workflowFixture {
	f := &workflowFixture{
		billing:  billing.NewMockClient(),
		store:    memstore.New(),
		notifier: &notify.Recorder{},
	}
	f.workflow = NewInvoiceWorkflow(f.billing, f.store, resolver, f.notifier, WorkflowConfig{DaysUntilDue: 7}, testLogger())
	return f
}

// submit stores req and returns the trigger event for it.
func (f *workflowFixture) submit(t *testing.T, eventID string, req domain.OrderRequest) OrderCreatedEvent {
	t.Helper()
	rec, err := f.store.CreateRecord(context.Background(), req)
	require.NoError(t, err)
	return OrderCreatedEvent{EventID: eventID, RecordID: rec.ID, Request: req}
}

func usdItems(amounts ...int64) []domain.OrderItem {
	items := make([]domain.OrderItem, len(amounts))
	for i, a := range amounts {
		items[i] = domain.OrderItem{Amount: a, Currency: "usd", Quantity: 1}
	}
	return items
}

func TestInvoiceWorkflow_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  domain.OrderRequest
	}{
		{
			name: "both email and uid",
			req:  domain.OrderRequest{Email: "a@x.com", UID: "u1", Items: usdItems(1000)},
		},
		{
			name: "neither email nor uid",
			req:  domain.OrderRequest{Items: usdItems(1000)},
		},
		{
			name: "empty items",
			req:  domain.OrderRequest{Email: "a@x.com", Items: []domain.OrderItem{}},
		},
		{
			name: "nil items",
			req:  domain.OrderRequest{Email: "a@x.com"},
		},
		{
			name: "item without currency",
			req:  domain.OrderRequest{Email: "a@x.com", Items: []domain.OrderItem{{Amount: 1000}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkflowFixture(identity.Static{"u1": "u1@x.com"})
			f.store.Put(domain.InvoiceRecord{ID: "rec_1", OrderRequest: tt.req})

			outcome := f.workflow.HandleOrderCreated(context.Background(), OrderCreatedEvent{
				EventID:  "evt_1",
				RecordID: "rec_1",
				Request:  tt.req,
			})

			assert.Equal(t, OutcomeRejected, outcome)
			assert.Empty(t, f.billing.Calls(), "no remote calls")
			assert.Equal(t, 0, f.store.Mutations(), "no record mutations")
		})
	}
}

func TestInvoiceWorkflow_SendsInvoice(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)

	ev := f.submit(t, "evt_1", domain.OrderRequest{
		Email:        "a@x.com",
		Items:        []domain.OrderItem{{Amount: 1000, Currency: "usd", Quantity: 1}},
		DaysUntilDue: 7,
	})

	outcome := f.workflow.HandleOrderCreated(ctx, ev)
	require.Equal(t, OutcomeSent, outcome)

	require.Len(t, f.billing.Customers, 1)
	require.Len(t, f.billing.InvoiceItems, 1)
	require.Len(t, f.billing.Invoices, 1)

	var customer *billing.Customer
	for _, c := range f.billing.Customers {
		customer = c
	}
	assert.Equal(t, "a@x.com", customer.Email)

	var invoice *billing.Invoice
	for _, inv := range f.billing.Invoices {
		invoice = inv
	}
	assert.Equal(t, "open", invoice.Status)

	items := f.billing.InvoiceItemIDs(invoice.ID)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), f.billing.InvoiceItems[items[0]].Amount)
	assert.Contains(t, f.billing.Calls(), fmt.Sprintf("CreateInvoice(%s, 7)", customer.ID))

	rec, err := f.store.GetRecord(ctx, ev.RecordID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, rec.StripeInvoiceID)
	assert.Equal(t, "https://invoice.stripe.com/i/"+invoice.ID, rec.StripeInvoiceURL)
	assert.Equal(t, "https://dashboard.stripe.com/test/invoices/"+invoice.ID, rec.StripeInvoiceRecord)
	assert.Empty(t, rec.StripeInvoiceStatus)

	sent, _ := f.notifier.Snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, invoice.ID, sent[0].StripeInvoiceID)
	assert.Equal(t, "open", sent[0].Status)
}

func TestInvoiceWorkflow_LivemodeDashboardLink(t *testing.T) {
	f := newWorkflowFixture(nil)
	f.billing.Livemode = true

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(context.Background(), ev))

	rec, err := f.store.GetRecord(context.Background(), ev.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "https://dashboard.stripe.com/invoices/"+rec.StripeInvoiceID, rec.StripeInvoiceRecord)
}

func TestInvoiceWorkflow_DaysUntilDueFallback(t *testing.T) {
	f := newWorkflowFixture(nil)
	f.workflow = NewInvoiceWorkflow(f.billing, f.store, nil, f.notifier, WorkflowConfig{DaysUntilDue: 30}, testLogger())

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(context.Background(), ev))

	var customerID string
	for id := range f.billing.Customers {
		customerID = id
	}
	assert.Contains(t, f.billing.Calls(), fmt.Sprintf("CreateInvoice(%s, 30)", customerID))
}

func TestInvoiceWorkflow_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000, 2500)})

	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, ev))
	first, err := f.store.GetRecord(ctx, ev.RecordID)
	require.NoError(t, err)

	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, ev))
	second, err := f.store.GetRecord(ctx, ev.RecordID)
	require.NoError(t, err)

	assert.Len(t, f.billing.Customers, 1)
	assert.Len(t, f.billing.InvoiceItems, 2)
	assert.Len(t, f.billing.Invoices, 1)
	assert.Equal(t, first.StripeInvoiceID, second.StripeInvoiceID)
}

func TestInvoiceWorkflow_CustomerPerCurrency(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)

	usd := f.submit(t, "evt_usd", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	eur := f.submit(t, "evt_eur", domain.OrderRequest{Email: "a@x.com", Items: []domain.OrderItem{{Amount: 900, Currency: "eur"}}})
	usd2 := f.submit(t, "evt_usd_2", domain.OrderRequest{Email: "a@x.com", Items: usdItems(2000)})

	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, usd))
	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, eur))
	require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, usd2))

	assert.Len(t, f.billing.Customers, 2)
	assert.Equal(t, 2, countCalls(f.billing, "CreateCustomer"))
}

func TestInvoiceWorkflow_ResolvesUID(t *testing.T) {
	ctx := context.Background()

	t.Run("uses identity email", func(t *testing.T) {
		f := newWorkflowFixture(identity.Static{"u1": "u1@x.com"})
		ev := f.submit(t, "evt_1", domain.OrderRequest{UID: "u1", Items: usdItems(1000)})

		require.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(ctx, ev))
		assert.Contains(t, f.billing.Calls(), "ListCustomersByEmail(u1@x.com)")
	})

	t.Run("aborts without email", func(t *testing.T) {
		f := newWorkflowFixture(identity.Static{})
		ev := f.submit(t, "evt_1", domain.OrderRequest{UID: "u1", Items: usdItems(1000)})
		before := f.store.Mutations()

		assert.Equal(t, OutcomeNoEmail, f.workflow.HandleOrderCreated(ctx, ev))
		assert.Empty(t, f.billing.Calls())
		assert.Equal(t, before, f.store.Mutations())
	})

	t.Run("identity failure", func(t *testing.T) {
		f := newWorkflowFixture(failingResolver{err: errors.New("identity service down")})
		ev := f.submit(t, "evt_1", domain.OrderRequest{UID: "u1", Items: usdItems(1000)})

		assert.Equal(t, OutcomeFailed, f.workflow.HandleOrderCreated(ctx, ev))
		assert.Empty(t, f.billing.Calls())
	})
}

type failingResolver struct{ err error }

func (r failingResolver) EmailForUID(ctx context.Context, uid string) (string, error) {
	return "", r.err
}

func TestInvoiceWorkflow_ItemFailureLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)
	f.billing.CreateInvoiceItemFunc = func(ctx context.Context, params billing.CreateInvoiceItemParams) (*billing.InvoiceItem, error) {
		return nil, &billing.ProviderError{Op: "invoiceItems.create", Message: "Invalid currency", HTTPStatusCode: 400}
	}

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	before := f.store.Mutations()

	assert.Equal(t, OutcomeFailed, f.workflow.HandleOrderCreated(ctx, ev))

	assert.Empty(t, f.billing.Invoices)
	assert.Equal(t, 0, countCalls(f.billing, "SendInvoice"))
	assert.Equal(t, before, f.store.Mutations())

	rec, err := f.store.GetRecord(ctx, ev.RecordID)
	require.NoError(t, err)
	assert.False(t, rec.HasInvoice())

	sent, _ := f.notifier.Snapshot()
	assert.Empty(t, sent)
}

func TestInvoiceWorkflow_CustomerFailure(t *testing.T) {
	f := newWorkflowFixture(nil)
	f.billing.ListCustomersByEmailFunc = func(ctx context.Context, email string) ([]billing.Customer, error) {
		return nil, &billing.ProviderError{Op: "customers.list", Message: "boom", HTTPStatusCode: 500}
	}

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	assert.Equal(t, OutcomeFailed, f.workflow.HandleOrderCreated(context.Background(), ev))
	assert.Equal(t, 0, countCalls(f.billing, "CreateInvoiceItem"))
}

func TestInvoiceWorkflow_SentButNotOpen(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)
	f.billing.SendInvoiceFunc = func(ctx context.Context, invoiceID string, idempotencyKey string) (*billing.Invoice, error) {
		assert.Equal(t, "invoices-sendInvoice-evt_1", idempotencyKey)
		return &billing.Invoice{ID: invoiceID, Status: "paid", HostedURL: "https://invoice.stripe.com/i/" + invoiceID}, nil
	}

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(0)})

	assert.Equal(t, OutcomeNotOpen, f.workflow.HandleOrderCreated(ctx, ev))
	assert.Equal(t, 1, countCalls(f.billing, "SendInvoice"))

	rec, err := f.store.GetRecord(ctx, ev.RecordID)
	require.NoError(t, err)
	assert.True(t, rec.HasInvoice())
}

func TestInvoiceWorkflow_SendFailure(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(nil)
	f.billing.SendInvoiceFunc = func(ctx context.Context, invoiceID string, idempotencyKey string) (*billing.Invoice, error) {
		return nil, &billing.ProviderError{Op: "invoices.sendInvoice", Message: "boom", HTTPStatusCode: 502}
	}

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	before := f.store.Mutations()

	assert.Equal(t, OutcomeFailed, f.workflow.HandleOrderCreated(ctx, ev))
	assert.Equal(t, before, f.store.Mutations())
}

func TestInvoiceWorkflow_PersistFailure(t *testing.T) {
	f := newWorkflowFixture(nil)
	f.store.SetInvoiceReferenceFunc = func(ctx context.Context, id string, ref domain.InvoiceReference) error {
		return errors.New("store unavailable")
	}

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	assert.Equal(t, OutcomeFailed, f.workflow.HandleOrderCreated(context.Background(), ev))

	sent, _ := f.notifier.Snapshot()
	assert.Empty(t, sent)
}

func TestInvoiceWorkflow_NotificationFailureIsIgnored(t *testing.T) {
	f := newWorkflowFixture(nil)
	f.notifier.Err = errors.New("nats down")

	ev := f.submit(t, "evt_1", domain.OrderRequest{Email: "a@x.com", Items: usdItems(1000)})
	assert.Equal(t, OutcomeSent, f.workflow.HandleOrderCreated(context.Background(), ev))
}
