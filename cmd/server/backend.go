package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/invoicer/internal"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/firestore"
	"github.com/dukerupert/invoicer/internal/handler"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/memstore"
	"github.com/dukerupert/invoicer/internal/postgres"
	"github.com/dukerupert/invoicer/internal/repository"
	"github.com/dukerupert/invoicer/internal/service"
	"github.com/dukerupert/invoicer/internal/worker"
)

// orderHandler is satisfied by the invoice workflow.
type orderHandler interface {
	HandleOrderCreated(ctx context.Context, ev service.OrderCreatedEvent) service.Outcome
}

// backend is a record store plus the trigger source that reports new records.
type backend struct {
	store   domain.InvoiceRecordStore
	trigger func(ctx context.Context, orders orderHandler) error
	health  map[string]handler.HealthCheck
	close   func()
}

func openBackend(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case internal.StoreDriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case internal.StoreDriverFirestore:
		return openFirestore(ctx, cfg, logger)
	case internal.StoreDriverMemory:
		return openMemory(logger), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func openPostgres(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*backend, error) {
	// Run migrations over database/sql
	logger.Info("Running database migrations...")
	sqlDB, err := internal.OpenDatabase(cfg.DatabaseUrl)
	if err != nil {
		return nil, err
	}
	err = internal.RunMigrations(sqlDB)
	sqlDB.Close()
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	queries := repository.New(pool)
	store := postgres.NewInvoiceStore(pool, logger)

	if err := jobs.EnqueueCleanupFinishedJobs(ctx, queries, jobs.DefaultJobRetention); err != nil {
		logger.Warn("failed to schedule job cleanup", "error", err)
	}

	return &backend{
		store: store,
		trigger: func(ctx context.Context, orders orderHandler) error {
			return newJobWorker(queries, store, orders, cfg, logger).Start(ctx)
		},
		health: map[string]handler.HealthCheck{"postgres": pool.Ping},
		close:  pool.Close,
	}, nil
}

// newJobWorker serves every queue: invoice jobs and the maintenance jobs
// enqueued at start and by invoicectl.
func newJobWorker(queries repository.Querier, store domain.InvoiceRecordStore, orders orderHandler, cfg *internal.Config, logger *slog.Logger) *worker.Worker {
	return worker.NewWorker(queries, store, orders, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		MaxConcurrency: cfg.Worker.Concurrency,
	}, logger)
}

func openFirestore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*backend, error) {
	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return nil, err
	}
	logger.Info("Firestore client initialized",
		"project_id", cfg.Firestore.ProjectID,
		"collection", cfg.Firestore.Collection,
	)

	return &backend{
		store: firestore.NewStore(client, cfg.Firestore.Collection, logger),
		trigger: func(ctx context.Context, orders orderHandler) error {
			l := firestore.NewListener(client, cfg.Firestore.Collection, orders, cfg.Worker.Concurrency, logger)
			return l.Run(ctx)
		},
		health: map[string]handler.HealthCheck{},
		close: func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close firestore client", "error", err)
			}
		},
	}, nil
}

// openMemory keeps records in process. Each created record runs the
// workflow with the record id as the event id.
func openMemory(logger *slog.Logger) *backend {
	store := memstore.New()
	created := make(chan domain.InvoiceRecord, 64)
	store.OnCreate = func(rec domain.InvoiceRecord) { created <- rec }
	logger.Warn("Using in-memory record store; records are lost on restart")

	return &backend{
		store: store,
		trigger: func(ctx context.Context, orders orderHandler) error {
			var inflight sync.WaitGroup
			defer inflight.Wait()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec := <-created:
					inflight.Add(1)
					go func() {
						defer inflight.Done()
						orders.HandleOrderCreated(context.WithoutCancel(ctx), service.OrderCreatedEvent{
							EventID:  rec.ID,
							RecordID: rec.ID,
							Request:  rec.OrderRequest,
						})
					}()
				}
			}
		},
		health: map[string]handler.HealthCheck{},
		close:  func() {},
	}
}
