// Package memstore is an in-memory InvoiceRecordStore for tests and local runs.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/google/uuid"
)

// Store keeps invoice records in a map. Safe for concurrent use.
type Store struct {
	// FindByStripeInvoiceIDFunc overrides the query when set.
	FindByStripeInvoiceIDFunc func(ctx context.Context, stripeInvoiceID string) ([]domain.InvoiceRecord, error)

	// SetInvoiceReferenceFunc overrides the reference write when set.
	SetInvoiceReferenceFunc func(ctx context.Context, id string, ref domain.InvoiceReference) error

	// SetInvoiceStatusFunc overrides the status write when set.
	SetInvoiceStatusFunc func(ctx context.Context, id string, update domain.StatusUpdate) error

	// OnCreate, when set, is called after a record is stored.
	OnCreate func(rec domain.InvoiceRecord)

	mu        sync.Mutex
	records   map[string]*domain.InvoiceRecord
	mutations int
}

// Compile-time check to ensure Store implements domain.InvoiceRecordStore.
var _ domain.InvoiceRecordStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]*domain.InvoiceRecord)}
}

// Put inserts or replaces a record as-is. It does not count as a mutation.
func (s *Store) Put(rec domain.InvoiceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records[rec.ID] = &rec
}

// CreateRecord stores a new record with a generated id.
func (s *Store) CreateRecord(ctx context.Context, req domain.OrderRequest) (*domain.InvoiceRecord, error) {
	now := time.Now().UTC()
	rec := domain.InvoiceRecord{
		ID:           uuid.NewString(),
		OrderRequest: req,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	s.records[rec.ID] = &rec
	s.mutations++
	onCreate := s.OnCreate
	s.mu.Unlock()

	if onCreate != nil {
		onCreate(rec)
	}

	out := rec
	return &out, nil
}

// GetRecord returns a copy of the record or domain.ErrRecordNotFound.
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}

// FindByStripeInvoiceID returns every record referencing the invoice.
func (s *Store) FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) ([]domain.InvoiceRecord, error) {
	if s.FindByStripeInvoiceIDFunc != nil {
		return s.FindByStripeInvoiceIDFunc(ctx, stripeInvoiceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InvoiceRecord
	for _, rec := range s.records {
		if rec.StripeInvoiceID == stripeInvoiceID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// SetInvoiceReference writes the invoice reference fields.
func (s *Store) SetInvoiceReference(ctx context.Context, id string, ref domain.InvoiceReference) error {
	if s.SetInvoiceReferenceFunc != nil {
		return s.SetInvoiceReferenceFunc(ctx, id, ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.StripeInvoiceID = ref.StripeInvoiceID
	rec.StripeInvoiceURL = ref.StripeInvoiceURL
	rec.StripeInvoiceRecord = ref.StripeInvoiceRecord
	rec.UpdatedAt = time.Now().UTC()
	s.mutations++
	return nil
}

// SetInvoiceStatus writes stripeInvoiceStatus and lastStripeEvent.
func (s *Store) SetInvoiceStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	if s.SetInvoiceStatusFunc != nil {
		return s.SetInvoiceStatusFunc(ctx, id, update)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.StripeInvoiceStatus = update.Status
	rec.LastStripeEvent = update.LastEvent
	rec.UpdatedAt = time.Now().UTC()
	s.mutations++
	return nil
}

// Mutations returns the number of writes made through the store interface.
func (s *Store) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}
