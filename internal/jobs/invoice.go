package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/invoicer/internal/repository"
)

// Job type constants for invoice jobs
const (
	JobTypeCreateInvoice = "invoice:create"
)

// QueueInvoicing is the queue invoice jobs are enqueued on.
const QueueInvoicing = "invoicing"

// CreateInvoicePayload identifies the stored order request to invoice.
type CreateInvoicePayload struct {
	RecordID uuid.UUID `json:"record_id"`
}

// EnqueueCreateInvoice enqueues the creation workflow for a stored order
// request. The returned job's id doubles as the workflow's event id, so
// retries of the job reuse the same idempotency keys.
//
// TimeoutSeconds is left at zero: the workflow must not be cut off between
// provider calls.
func EnqueueCreateInvoice(ctx context.Context, q repository.Querier, recordID uuid.UUID) (repository.Job, error) {
	payloadJSON, err := json.Marshal(CreateInvoicePayload{RecordID: recordID})
	if err != nil {
		return repository.Job{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:    JobTypeCreateInvoice,
		Queue:      QueueInvoicing,
		Payload:    payloadJSON,
		Priority:   100,
		MaxRetries: 3,
		ScheduledAt: pgtype.Timestamptz{
			Time:  time.Now(),
			Valid: true,
		},
	})
}

// ParseCreateInvoicePayload decodes a create-invoice job payload.
func ParseCreateInvoicePayload(job *repository.Job) (CreateInvoicePayload, error) {
	var payload CreateInvoicePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.RecordID == uuid.Nil {
		return payload, fmt.Errorf("payload is missing record_id")
	}
	return payload, nil
}

// IsInvoiceJob checks if a job type is an invoice job
func IsInvoiceJob(jobType string) bool {
	return jobType == JobTypeCreateInvoice
}
