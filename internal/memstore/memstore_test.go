package memstore

import (
	"context"
	"testing"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	var created []string
	s.OnCreate = func(rec domain.InvoiceRecord) { created = append(created, rec.ID) }

	rec, err := s.CreateRecord(ctx, domain.OrderRequest{
		Email: "a@x.com",
		Items: []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, created)

	require.NoError(t, s.SetInvoiceReference(ctx, rec.ID, domain.InvoiceReference{StripeInvoiceID: "in_1"}))
	require.NoError(t, s.SetInvoiceStatus(ctx, rec.ID, domain.StatusUpdate{Status: "paid", LastEvent: "invoice.paid"}))

	found, err := s.FindByStripeInvoiceID(ctx, "in_1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "paid", found[0].StripeInvoiceStatus)
	assert.Equal(t, "invoice.paid", found[0].LastStripeEvent)
	assert.Equal(t, "a@x.com", found[0].Email)
	assert.Equal(t, 3, s.Mutations())

	_, err = s.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.ErrorIs(t, s.SetInvoiceStatus(ctx, "missing", domain.StatusUpdate{}), domain.ErrRecordNotFound)
}
