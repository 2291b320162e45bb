package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/repository"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// InvoiceStore implements domain.InvoiceRecordStore using PostgreSQL.
// Creating a record enqueues its invoice:create job in the same transaction.
type InvoiceStore struct {
	pool   *pgxpool.Pool
	repo   *repository.Queries
	logger *slog.Logger
}

// Compile-time check that InvoiceStore implements domain.InvoiceRecordStore.
var _ domain.InvoiceRecordStore = (*InvoiceStore)(nil)

// NewInvoiceStore creates a new PostgreSQL-backed invoice record store.
func NewInvoiceStore(pool *pgxpool.Pool, logger *slog.Logger) *InvoiceStore {
	return &InvoiceStore{
		pool:   pool,
		repo:   repository.New(pool),
		logger: logger,
	}
}

// CreateRecord inserts the order request and enqueues the creation workflow.
func (s *InvoiceStore) CreateRecord(ctx context.Context, req domain.OrderRequest) (rec *domain.InvoiceRecord, err error) {
	const op = "invoice_record.create"

	params, err := toCreateParams(req)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode order request")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	row, err := txRepo.CreateInvoiceRequest(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to insert order request")
	}

	id, err := pgtypeToUUID(row.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "insert returned no id")
	}

	job, err := jobs.EnqueueCreateInvoice(ctx, txRepo, id)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to enqueue invoice job")
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit transaction")
	}

	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(job.JobType).Inc()
	}

	s.logger.Info("order request stored",
		slog.String("record_id", id.String()),
		slog.String("job_id", uuid.UUID(job.ID.Bytes).String()),
	)

	return toRecord(row)
}

// GetRecord returns the record with the given id.
func (s *InvoiceStore) GetRecord(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	const op = "invoice_record.get"

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrRecordNotFound
	}

	row, err := s.repo.GetInvoiceRequest(ctx, uuidToPgtype(parsed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, domain.Internal(err, op, "failed to load order request")
	}

	return toRecord(row)
}

// FindByStripeInvoiceID returns every record referencing the invoice.
func (s *InvoiceStore) FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) ([]domain.InvoiceRecord, error) {
	const op = "invoice_record.find_by_stripe_invoice"

	rows, err := s.repo.ListInvoiceRequestsByStripeInvoiceID(ctx, text(stripeInvoiceID))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to query order requests")
	}

	records := make([]domain.InvoiceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode order request")
		}
		records = append(records, *rec)
	}
	return records, nil
}

// SetInvoiceReference writes the invoice reference fields.
func (s *InvoiceStore) SetInvoiceReference(ctx context.Context, id string, ref domain.InvoiceReference) error {
	const op = "invoice_record.set_reference"

	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrRecordNotFound
	}

	n, err := s.repo.SetInvoiceReference(ctx, repository.SetInvoiceReferenceParams{
		ID:                  uuidToPgtype(parsed),
		StripeInvoiceID:     text(ref.StripeInvoiceID),
		StripeInvoiceUrl:    text(ref.StripeInvoiceURL),
		StripeInvoiceRecord: text(ref.StripeInvoiceRecord),
	})
	if err != nil {
		return domain.Internal(err, op, "failed to write invoice reference")
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// SetInvoiceStatus writes the invoice status and the event that set it.
func (s *InvoiceStore) SetInvoiceStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	const op = "invoice_record.set_status"

	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrRecordNotFound
	}

	n, err := s.repo.SetInvoiceStatus(ctx, repository.SetInvoiceStatusParams{
		ID:                  uuidToPgtype(parsed),
		StripeInvoiceStatus: text(update.Status),
		LastStripeEvent:     text(update.LastEvent),
	})
	if err != nil {
		return domain.Internal(err, op, "failed to write invoice status")
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func toCreateParams(req domain.OrderRequest) (repository.CreateInvoiceRequestParams, error) {
	items, err := json.Marshal(req.Items)
	if err != nil {
		return repository.CreateInvoiceRequestParams{}, fmt.Errorf("items: %w", err)
	}
	taxRates, err := jsonOrNil(req.DefaultTaxRates, len(req.DefaultTaxRates) == 0)
	if err != nil {
		return repository.CreateInvoiceRequestParams{}, fmt.Errorf("default_tax_rates: %w", err)
	}
	transfer, err := jsonOrNil(req.TransferData, req.TransferData == nil)
	if err != nil {
		return repository.CreateInvoiceRequestParams{}, fmt.Errorf("transfer_data: %w", err)
	}

	params := repository.CreateInvoiceRequestParams{
		Email:           text(req.Email),
		Uid:             text(req.UID),
		Items:           items,
		DefaultTaxRates: taxRates,
		TransferData:    transfer,
		Description:     text(req.Description),
	}
	if req.DaysUntilDue != 0 {
		params.DaysUntilDue.Int64 = req.DaysUntilDue
		params.DaysUntilDue.Valid = true
	}
	return params, nil
}

func toRecord(row repository.InvoiceRequest) (*domain.InvoiceRecord, error) {
	id, err := pgtypeToUUID(row.ID)
	if err != nil {
		return nil, err
	}

	rec := &domain.InvoiceRecord{
		ID: id.String(),
		OrderRequest: domain.OrderRequest{
			Email:        row.Email.String,
			UID:          row.Uid.String,
			DaysUntilDue: row.DaysUntilDue.Int64,
			Description:  row.Description.String,
		},
		StripeInvoiceID:     row.StripeInvoiceID.String,
		StripeInvoiceURL:    row.StripeInvoiceUrl.String,
		StripeInvoiceRecord: row.StripeInvoiceRecord.String,
		StripeInvoiceStatus: row.StripeInvoiceStatus.String,
		LastStripeEvent:     row.LastStripeEvent.String,
		CreatedAt:           row.CreatedAt.Time,
		UpdatedAt:           row.UpdatedAt.Time,
	}

	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &rec.Items); err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
	}
	if len(row.DefaultTaxRates) > 0 {
		if err := json.Unmarshal(row.DefaultTaxRates, &rec.DefaultTaxRates); err != nil {
			return nil, fmt.Errorf("default_tax_rates: %w", err)
		}
	}
	if len(row.TransferData) > 0 && string(row.TransferData) != "null" {
		rec.TransferData = &domain.TransferData{}
		if err := json.Unmarshal(row.TransferData, rec.TransferData); err != nil {
			return nil, fmt.Errorf("transfer_data: %w", err)
		}
	}
	return rec, nil
}
