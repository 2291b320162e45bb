package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/repository"
	"github.com/dukerupert/invoicer/internal/service"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process (empty string = all queues)
	Queue string
}

// OrderHandler runs the invoice creation workflow for one stored order.
type OrderHandler interface {
	HandleOrderCreated(ctx context.Context, ev service.OrderCreatedEvent) service.Outcome
}

// Worker processes background jobs
type Worker struct {
	config  Config
	queries repository.Querier
	store   domain.InvoiceRecordStore
	orders  OrderHandler
	logger  *slog.Logger

	inflight sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(
	queries repository.Querier,
	store domain.InvoiceRecordStore,
	orders OrderHandler,
	config Config,
	logger *slog.Logger,
) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}

	return &Worker{
		config:  config,
		queries: queries,
		store:   store,
		orders:  orders,
		logger:  logger,
	}
}

// Start begins processing jobs until the context is cancelled. Jobs already
// claimed run to completion before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			w.inflight.Wait()
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.inflight.Add(1)
				go func() {
					defer w.inflight.Done()
					defer func() { <-sem }()
					w.claimAndProcess(ctx)
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

// claimAndProcess claims and processes a single job. It reports whether a
// job was claimed.
func (w *Worker) claimAndProcess(ctx context.Context) bool {
	job, err := w.queries.ClaimNextJob(ctx, repository.ClaimNextJobParams{
		WorkerID: pgtype.Text{String: w.config.WorkerID, Valid: true},
		Queue:    w.config.Queue,
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			w.logger.Error("failed to claim job", "worker_id", w.config.WorkerID, "error", err)
		}
		return false
	}

	// A claimed job is finished even if shutdown starts meanwhile.
	ctx = context.WithoutCancel(ctx)
	jobID := uuid.UUID(job.ID.Bytes).String()

	w.logger.Info("processing job",
		"job_id", jobID,
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
	)

	start := time.Now()
	err = w.processJob(ctx, &job)
	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		w.logger.Error("job failed",
			"job_id", jobID,
			"job_type", job.JobType,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(job.JobType).Inc()
		}
		telemetry.CaptureError(err, map[string]interface{}{"job_id": jobID, "job_type": job.JobType})

		// Retried or marked failed based on retry count
		if _, ferr := w.queries.FailJob(ctx, repository.FailJobParams{
			ID:           job.ID,
			ErrorMessage: pgtype.Text{String: err.Error(), Valid: true},
		}); ferr != nil {
			w.logger.Error("failed to record job failure", "job_id", jobID, "error", ferr)
		}
		return true
	}

	w.logger.Info("job completed",
		"job_id", jobID,
		"job_type", job.JobType,
	)
	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(job.JobType).Inc()
	}

	if cerr := w.queries.CompleteJob(ctx, job.ID); cerr != nil {
		w.logger.Error("failed to complete job", "job_id", jobID, "error", cerr)
	}
	return true
}

// processJob processes a single job
func (w *Worker) processJob(ctx context.Context, job *repository.Job) error {
	if job.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(job.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if jobs.IsInvoiceJob(job.JobType) {
		return w.processInvoiceJob(ctx, job)
	}

	if jobs.IsCleanupJob(job.JobType) {
		result, err := jobs.ProcessCleanupJob(ctx, job, w.queries)
		if err != nil {
			return err
		}
		w.logger.Info("finished jobs deleted", "count", result.JobsDeleted)
		return nil
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}

// processInvoiceJob runs the creation workflow for the job's record. The job
// id is the workflow's event id. Workflow failures are reported by the
// workflow itself and complete the job; only a job that cannot reach the
// workflow fails.
func (w *Worker) processInvoiceJob(ctx context.Context, job *repository.Job) error {
	switch job.JobType {
	case jobs.JobTypeCreateInvoice:
		payload, err := jobs.ParseCreateInvoicePayload(job)
		if err != nil {
			return err
		}

		rec, err := w.store.GetRecord(ctx, payload.RecordID.String())
		if err != nil {
			return fmt.Errorf("failed to load record %s: %w", payload.RecordID, err)
		}
		if rec.HasInvoice() {
			w.logger.Info("record already invoiced", "record_id", rec.ID, "stripe_invoice_id", rec.StripeInvoiceID)
			return nil
		}

		outcome := w.orders.HandleOrderCreated(ctx, service.OrderCreatedEvent{
			EventID:  uuid.UUID(job.ID.Bytes).String(),
			RecordID: rec.ID,
			Request:  rec.OrderRequest,
		})
		w.logger.Info("invoice workflow finished", "record_id", rec.ID, "outcome", outcome)
		return nil

	default:
		return fmt.Errorf("unknown invoice job type: %s", job.JobType)
	}
}
