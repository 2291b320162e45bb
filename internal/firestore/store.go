// Package firestore keeps invoice records as Firestore documents and turns
// newly added documents into invoice workflow runs.
package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dukerupert/invoicer/internal/domain"
)

// DefaultCollection is the collection order requests are written to.
const DefaultCollection = "invoices"

// NewClient creates a Firestore client. FIRESTORE_EMULATOR_HOST is honored
// by the client library.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// Store implements domain.InvoiceRecordStore on a Firestore collection.
// Document ids are record ids.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// Compile-time check that Store implements domain.InvoiceRecordStore.
var _ domain.InvoiceRecordStore = (*Store)(nil)

// NewStore creates a store over the named collection.
func NewStore(client *firestore.Client, collection string, logger *slog.Logger) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection, logger: logger}
}

func (s *Store) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// CreateRecord adds a new document. A running Listener picks it up.
func (s *Store) CreateRecord(ctx context.Context, req domain.OrderRequest) (*domain.InvoiceRecord, error) {
	const op = "invoice_record.create"

	ref := s.col().NewDoc()
	rec := domain.InvoiceRecord{OrderRequest: req}
	if _, err := ref.Create(ctx, rec); err != nil {
		return nil, domain.Internal(err, op, "failed to create document")
	}

	s.logger.Info("order request stored", slog.String("record_id", ref.ID))

	rec.ID = ref.ID
	return &rec, nil
}

// GetRecord returns the document with the given id.
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	const op = "invoice_record.get"

	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrRecordNotFound
		}
		return nil, domain.Internal(err, op, "failed to load document")
	}

	return decode(snap)
}

// FindByStripeInvoiceID returns every document whose stripeInvoiceId matches.
func (s *Store) FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) ([]domain.InvoiceRecord, error) {
	const op = "invoice_record.find_by_stripe_invoice"

	docs, err := s.col().Where("stripeInvoiceId", "==", stripeInvoiceID).Documents(ctx).GetAll()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to query documents")
	}

	records := make([]domain.InvoiceRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decode(doc)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode document")
		}
		records = append(records, *rec)
	}
	return records, nil
}

// SetInvoiceReference updates only the invoice reference fields.
func (s *Store) SetInvoiceReference(ctx context.Context, id string, ref domain.InvoiceReference) error {
	return s.update(ctx, "invoice_record.set_reference", id, []firestore.Update{
		{Path: "stripeInvoiceId", Value: ref.StripeInvoiceID},
		{Path: "stripeInvoiceUrl", Value: ref.StripeInvoiceURL},
		{Path: "stripeInvoiceRecord", Value: ref.StripeInvoiceRecord},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

// SetInvoiceStatus updates only stripeInvoiceStatus and lastStripeEvent.
func (s *Store) SetInvoiceStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	return s.update(ctx, "invoice_record.set_status", id, []firestore.Update{
		{Path: "stripeInvoiceStatus", Value: update.Status},
		{Path: "lastStripeEvent", Value: update.LastEvent},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (s *Store) update(ctx context.Context, op, id string, updates []firestore.Update) error {
	if _, err := s.col().Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrRecordNotFound
		}
		return domain.Internal(err, op, "failed to update document")
	}
	return nil
}

func decode(snap *firestore.DocumentSnapshot) (*domain.InvoiceRecord, error) {
	var rec domain.InvoiceRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("document %s: %w", snap.Ref.ID, err)
	}
	rec.ID = snap.Ref.ID
	return &rec, nil
}
