package service

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceBuilder_Build(t *testing.T) {
	ctx := context.Background()
	amount := int64(250)

	t.Run("creates items then invoice with derived keys", func(t *testing.T) {
		m := billing.NewMockClient()
		customer, err := m.CreateCustomer(ctx, billing.CreateCustomerParams{Email: "a@x.com"})
		require.NoError(t, err)

		var mu sync.Mutex
		var itemKeys []string
		m.CreateInvoiceItemFunc = func(ctx context.Context, params billing.CreateInvoiceItemParams) (*billing.InvoiceItem, error) {
			mu.Lock()
			itemKeys = append(itemKeys, params.IdempotencyKey)
			mu.Unlock()
			return &billing.InvoiceItem{ID: "ii_" + params.IdempotencyKey, CustomerID: params.CustomerID}, nil
		}

		var invoiceParams billing.CreateInvoiceParams
		m.CreateInvoiceFunc = func(ctx context.Context, params billing.CreateInvoiceParams) (*billing.Invoice, error) {
			invoiceParams = params
			return &billing.Invoice{ID: "in_1", CustomerID: params.CustomerID, Status: "draft"}, nil
		}

		b := NewInvoiceBuilder(m, testLogger())
		inv := b.Build(ctx, BuildParams{
			Customer: customer,
			Items: []domain.OrderItem{
				{Amount: 1000, Currency: "usd"},
				{Amount: 500, Currency: "usd", Quantity: 3, TaxRates: []string{"txr_1"}},
			},
			DaysUntilDue:    14,
			DefaultTaxRates: []string{"txr_default"},
			TransferData:    &domain.TransferData{Destination: "acct_1", Amount: &amount},
			Description:     "Order 42",
			IdempotencyKey:  "evt_1",
		})
		require.NotNil(t, inv)
		assert.Equal(t, "in_1", inv.ID)

		sort.Strings(itemKeys)
		assert.Equal(t, []string{"invoiceItems-create-evt_1-0", "invoiceItems-create-evt_1-1"}, itemKeys)

		assert.Equal(t, "invoices-create-evt_1", invoiceParams.IdempotencyKey)
		assert.Equal(t, int64(14), invoiceParams.DaysUntilDue)
		assert.Equal(t, []string{"txr_default"}, invoiceParams.DefaultTaxRates)
		assert.Equal(t, "Order 42", invoiceParams.Description)
		require.NotNil(t, invoiceParams.TransferData)
		assert.Equal(t, "acct_1", invoiceParams.TransferData.Destination)
		assert.Equal(t, &amount, invoiceParams.TransferData.Amount)
	})

	t.Run("defaults item quantity to one", func(t *testing.T) {
		m := billing.NewMockClient()
		customer, err := m.CreateCustomer(ctx, billing.CreateCustomerParams{Email: "a@x.com"})
		require.NoError(t, err)

		b := NewInvoiceBuilder(m, testLogger())
		inv := b.Build(ctx, BuildParams{
			Customer:       customer,
			Items:          []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
			DaysUntilDue:   7,
			IdempotencyKey: "evt_1",
		})
		require.NotNil(t, inv)

		ids := m.InvoiceItemIDs(inv.ID)
		require.Len(t, ids, 1)
		assert.Equal(t, int64(1000), m.InvoiceItems[ids[0]].Amount)
	})

	t.Run("item failure creates no invoice", func(t *testing.T) {
		m := billing.NewMockClient()
		m.CreateInvoiceItemFunc = func(ctx context.Context, params billing.CreateInvoiceItemParams) (*billing.InvoiceItem, error) {
			if strings.HasSuffix(params.IdempotencyKey, "-1") {
				return nil, &billing.ProviderError{Op: "invoiceItems.create", Message: "No such tax rate", Code: "resource_missing", HTTPStatusCode: 400}
			}
			return &billing.InvoiceItem{ID: "ii_ok"}, nil
		}

		b := NewInvoiceBuilder(m, testLogger())
		inv := b.Build(ctx, BuildParams{
			Customer: &billing.Customer{ID: "cus_1"},
			Items: []domain.OrderItem{
				{Amount: 1000, Currency: "usd"},
				{Amount: 1000, Currency: "usd", TaxRates: []string{"txr_missing"}},
				{Amount: 1000, Currency: "usd"},
			},
			DaysUntilDue:   7,
			IdempotencyKey: "evt_1",
		})

		assert.Nil(t, inv)
		assert.Equal(t, 3, countCalls(m, "CreateInvoiceItem"))
		assert.Equal(t, 0, countCalls(m, "CreateInvoice("))
	})

	t.Run("invoice failure returns nil", func(t *testing.T) {
		m := billing.NewMockClient()
		m.CreateInvoiceFunc = func(ctx context.Context, params billing.CreateInvoiceParams) (*billing.Invoice, error) {
			return nil, &billing.ProviderError{Op: "invoices.create", Message: "boom", HTTPStatusCode: 500}
		}
		customer, err := m.CreateCustomer(ctx, billing.CreateCustomerParams{Email: "a@x.com"})
		require.NoError(t, err)

		b := NewInvoiceBuilder(m, testLogger())
		inv := b.Build(ctx, BuildParams{
			Customer:       customer,
			Items:          []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
			DaysUntilDue:   7,
			IdempotencyKey: "evt_1",
		})
		assert.Nil(t, inv)
	})
}

func TestInvoiceBuilder_LogsProviderErrorClass(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  *billing.ProviderError
		want []string
	}{
		{
			name: "idempotency conflict",
			err:  &billing.ProviderError{Op: "invoiceItems.create", Type: "idempotency_error", HTTPStatusCode: 400},
			want: []string{`"idempotency_conflict":true`, `"provider_temporary":false`},
		},
		{
			name: "temporary outage",
			err:  &billing.ProviderError{Op: "invoiceItems.create", HTTPStatusCode: 503},
			want: []string{`"idempotency_conflict":false`, `"provider_temporary":true`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := billing.NewMockClient()
			customer, err := m.CreateCustomer(ctx, billing.CreateCustomerParams{Email: "a@x.com"})
			require.NoError(t, err)
			m.CreateInvoiceItemFunc = func(ctx context.Context, params billing.CreateInvoiceItemParams) (*billing.InvoiceItem, error) {
				return nil, tt.err
			}

			var buf bytes.Buffer
			b := NewInvoiceBuilder(m, slog.New(slog.NewJSONHandler(&buf, nil)))
			inv := b.Build(ctx, BuildParams{
				Customer:       customer,
				Items:          []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
				DaysUntilDue:   7,
				IdempotencyKey: "evt_1",
			})
			assert.Nil(t, inv)

			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			assert.Contains(t, buf.String(), `"provider_op":"invoiceItems.create"`)
		})
	}
}
