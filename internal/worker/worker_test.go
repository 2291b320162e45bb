package worker

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/memstore"
	"github.com/dukerupert/invoicer/internal/repository"
	"github.com/dukerupert/invoicer/internal/service"
)

type fakeQueue struct {
	repository.Querier

	mu        sync.Mutex
	pending   []repository.Job
	completed []pgtype.UUID
	failed    []repository.FailJobParams
	claimErr  error
}

func (q *fakeQueue) push(job repository.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !job.ID.Valid {
		job.ID = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	}
	q.pending = append(q.pending, job)
}

func (q *fakeQueue) ClaimNextJob(ctx context.Context, arg repository.ClaimNextJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return repository.Job{}, q.claimErr
	}
	for i, job := range q.pending {
		if arg.Queue != "" && job.Queue != arg.Queue {
			continue
		}
		q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
		job.Status = "processing"
		job.WorkerID = arg.WorkerID
		return job, nil
	}
	return repository.Job{}, pgx.ErrNoRows
}

func (q *fakeQueue) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	job := repository.Job{
		ID:             pgtype.UUID{Bytes: uuid.New(), Valid: true},
		JobType:        arg.JobType,
		Queue:          arg.Queue,
		Payload:        arg.Payload,
		Status:         "pending",
		TimeoutSeconds: arg.TimeoutSeconds,
	}
	q.push(job)
	return job, nil
}

func (q *fakeQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *fakeQueue) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) FailJob(ctx context.Context, arg repository.FailJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, arg)
	return repository.Job{ID: arg.ID}, nil
}

func (q *fakeQueue) DeleteFinishedJobsBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	return 2, nil
}

func (q *fakeQueue) counts() (completed, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed), len(q.failed)
}

type fakeOrders struct {
	mu     sync.Mutex
	events []service.OrderCreatedEvent
}

func (f *fakeOrders) HandleOrderCreated(ctx context.Context, ev service.OrderCreatedEvent) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return service.OutcomeSent
}

func newTestWorker(q *fakeQueue, store domain.InvoiceRecordStore, orders OrderHandler) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(q, store, orders, Config{WorkerID: "worker-test", PollInterval: 5 * time.Millisecond}, logger)
}

func invoiceJob(t *testing.T, recordID uuid.UUID) repository.Job {
	t.Helper()
	payload, err := json.Marshal(jobs.CreateInvoicePayload{RecordID: recordID})
	require.NoError(t, err)
	return repository.Job{
		ID:      pgtype.UUID{Bytes: uuid.New(), Valid: true},
		JobType: jobs.JobTypeCreateInvoice,
		Queue:   jobs.QueueInvoicing,
		Payload: payload,
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(&fakeQueue{}, memstore.New(), &fakeOrders{}, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Contains(t, w.config.WorkerID, "worker-")
	assert.Equal(t, time.Second, w.config.PollInterval)
	assert.Equal(t, 5, w.config.MaxConcurrency)
}

func TestWorker_InvoiceJob(t *testing.T) {
	store := memstore.New()
	recordID := uuid.New()
	store.Put(domain.InvoiceRecord{
		ID: recordID.String(),
		OrderRequest: domain.OrderRequest{
			Email: "a@example.com",
			Items: []domain.OrderItem{{Amount: 1000, Currency: "usd"}},
		},
	})

	q := &fakeQueue{}
	job := invoiceJob(t, recordID)
	q.push(job)
	orders := &fakeOrders{}

	w := newTestWorker(q, store, orders)
	assert.True(t, w.claimAndProcess(context.Background()))

	require.Len(t, orders.events, 1)
	ev := orders.events[0]
	assert.Equal(t, uuid.UUID(job.ID.Bytes).String(), ev.EventID)
	assert.Equal(t, recordID.String(), ev.RecordID)
	assert.Equal(t, "a@example.com", ev.Request.Email)

	completed, failed := q.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)

	assert.False(t, w.claimAndProcess(context.Background()), "queue is empty")
}

func TestWorker_SkipsInvoicedRecord(t *testing.T) {
	store := memstore.New()
	recordID := uuid.New()
	store.Put(domain.InvoiceRecord{
		ID:              recordID.String(),
		OrderRequest:    domain.OrderRequest{Email: "a@example.com", Items: []domain.OrderItem{{Amount: 1, Currency: "usd"}}},
		StripeInvoiceID: "in_1",
	})

	q := &fakeQueue{}
	q.push(invoiceJob(t, recordID))
	orders := &fakeOrders{}

	newTestWorker(q, store, orders).claimAndProcess(context.Background())

	assert.Empty(t, orders.events)
	completed, _ := q.counts()
	assert.Equal(t, 1, completed)
}

func TestWorker_FailsUnprocessableJobs(t *testing.T) {
	tests := []struct {
		name string
		job  func(t *testing.T) repository.Job
	}{
		{
			name: "missing record",
			job: func(t *testing.T) repository.Job {
				return invoiceJob(t, uuid.New())
			},
		},
		{
			name: "bad payload",
			job: func(t *testing.T) repository.Job {
				return repository.Job{JobType: jobs.JobTypeCreateInvoice, Payload: []byte("{")}
			},
		},
		{
			name: "unknown job type",
			job: func(t *testing.T) repository.Job {
				return repository.Job{JobType: "email:welcome", Payload: []byte("{}")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			q.push(tt.job(t))
			orders := &fakeOrders{}

			newTestWorker(q, memstore.New(), orders).claimAndProcess(context.Background())

			assert.Empty(t, orders.events)
			completed, failed := q.counts()
			assert.Equal(t, 0, completed)
			require.Equal(t, 1, failed)
			assert.True(t, q.failed[0].ErrorMessage.Valid)
		})
	}
}

func TestWorker_CleanupJob(t *testing.T) {
	q := &fakeQueue{}
	q.push(repository.Job{JobType: jobs.JobTypeCleanupFinishedJobs, Payload: []byte(`{"retention_hours":24}`), TimeoutSeconds: 60})

	newTestWorker(q, memstore.New(), &fakeOrders{}).claimAndProcess(context.Background())

	completed, failed := q.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
}

func TestWorker_QueueFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("invoicing worker leaves maintenance jobs", func(t *testing.T) {
		q := &fakeQueue{}
		require.NoError(t, jobs.EnqueueCleanupFinishedJobs(context.Background(), q, 24*time.Hour))

		w := NewWorker(q, memstore.New(), &fakeOrders{}, Config{Queue: jobs.QueueInvoicing}, logger)
		assert.False(t, w.claimAndProcess(context.Background()))
		assert.Equal(t, 1, q.pendingCount())
	})

	t.Run("all-queue worker runs enqueued cleanup", func(t *testing.T) {
		q := &fakeQueue{}
		require.NoError(t, jobs.EnqueueCleanupFinishedJobs(context.Background(), q, 24*time.Hour))

		w := NewWorker(q, memstore.New(), &fakeOrders{}, Config{}, logger)
		assert.True(t, w.claimAndProcess(context.Background()))
		assert.Equal(t, 0, q.pendingCount())
		completed, failed := q.counts()
		assert.Equal(t, 1, completed)
		assert.Equal(t, 0, failed)
	})
}

func TestWorker_ClaimError(t *testing.T) {
	q := &fakeQueue{claimErr: errors.New("connection refused")}
	assert.False(t, newTestWorker(q, memstore.New(), &fakeOrders{}).claimAndProcess(context.Background()))
}

func TestWorker_StartDrainsAndStops(t *testing.T) {
	store := memstore.New()
	q := &fakeQueue{}
	for i := 0; i < 3; i++ {
		id := uuid.New()
		store.Put(domain.InvoiceRecord{
			ID:           id.String(),
			OrderRequest: domain.OrderRequest{Email: "a@example.com", Items: []domain.OrderItem{{Amount: 1, Currency: "usd"}}},
		})
		q.push(invoiceJob(t, id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestWorker(q, store, &fakeOrders{}).Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		completed, _ := q.counts()
		return completed == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
