package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/invoicer/internal"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/memstore"
	"github.com/dukerupert/invoicer/internal/repository"
	"github.com/dukerupert/invoicer/internal/service"
)

type recordingOrders struct {
	mu     sync.Mutex
	events []service.OrderCreatedEvent
}

func (r *recordingOrders) HandleOrderCreated(ctx context.Context, ev service.OrderCreatedEvent) service.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return service.OutcomeSent
}

func (r *recordingOrders) snapshot() []service.OrderCreatedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.OrderCreatedEvent(nil), r.events...)
}

func TestMemoryBackend_DispatchesCreatedRecords(t *testing.T) {
	be := openMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	orders := &recordingOrders{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- be.trigger(ctx, orders) }()

	rec, err := be.store.CreateRecord(context.Background(), domain.OrderRequest{
		Email: "a@example.com",
		Items: []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(orders.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	ev := orders.snapshot()[0]
	assert.Equal(t, rec.ID, ev.EventID)
	assert.Equal(t, rec.ID, ev.RecordID)
	assert.Equal(t, "a@example.com", ev.Request.Email)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// jobTable filters claims by queue the way the jobs query does.
type jobTable struct {
	repository.Querier

	mu       sync.Mutex
	pending  []repository.Job
	done     int
	cleanups int
}

func (q *jobTable) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := repository.Job{
		ID:      pgtype.UUID{Bytes: uuid.New(), Valid: true},
		JobType: arg.JobType,
		Queue:   arg.Queue,
		Payload: arg.Payload,
	}
	q.pending = append(q.pending, job)
	return job, nil
}

func (q *jobTable) ClaimNextJob(ctx context.Context, arg repository.ClaimNextJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.pending {
		if arg.Queue != "" && job.Queue != arg.Queue {
			continue
		}
		q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
		return job, nil
	}
	return repository.Job{}, pgx.ErrNoRows
}

func (q *jobTable) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done++
	return nil
}

func (q *jobTable) FailJob(ctx context.Context, arg repository.FailJobParams) (repository.Job, error) {
	return repository.Job{ID: arg.ID}, nil
}

func (q *jobTable) DeleteFinishedJobsBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleanups++
	return 0, nil
}

func (q *jobTable) state() (pending, done, cleanups int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), q.done, q.cleanups
}

func TestJobWorker_RunsInvoiceAndCleanupJobs(t *testing.T) {
	store := memstore.New()
	recordID := uuid.New()
	store.Put(domain.InvoiceRecord{
		ID: recordID.String(),
		OrderRequest: domain.OrderRequest{
			Email: "a@example.com",
			Items: []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
		},
	})

	q := &jobTable{}
	ctx := context.Background()
	require.NoError(t, jobs.EnqueueCleanupFinishedJobs(ctx, q, jobs.DefaultJobRetention))
	_, err := jobs.EnqueueCreateInvoice(ctx, q, recordID)
	require.NoError(t, err)

	cfg := &internal.Config{Worker: internal.WorkerConfig{Concurrency: 2, PollInterval: 5 * time.Millisecond}}
	orders := &recordingOrders{}
	w := newJobWorker(q, store, orders, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Start(runCtx) }()

	require.Eventually(t, func() bool {
		pending, completed, _ := q.state()
		return pending == 0 && completed == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	_, _, cleanups := q.state()
	assert.Equal(t, 1, cleanups)
	assert.Len(t, orders.snapshot(), 1)
}
