package firestore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/dukerupert/invoicer/internal/service"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// OrderHandler runs the invoice creation workflow for one stored order.
type OrderHandler interface {
	HandleOrderCreated(ctx context.Context, ev service.OrderCreatedEvent) service.Outcome
}

// Listener watches the collection and runs the workflow once for every
// document added after the listener started. The document id is the event id.
type Listener struct {
	client      *firestore.Client
	collection  string
	orders      OrderHandler
	concurrency int
	logger      *slog.Logger
}

// NewListener creates a listener. concurrency bounds in-flight workflow runs.
func NewListener(client *firestore.Client, collection string, orders OrderHandler, concurrency int, logger *slog.Logger) *Listener {
	if collection == "" {
		collection = DefaultCollection
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Listener{
		client:      client,
		collection:  collection,
		orders:      orders,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run listens until ctx is cancelled. Workflow runs already started finish
// before Run returns.
func (l *Listener) Run(ctx context.Context) error {
	since := time.Now()
	l.logger.Info("firestore listener starting",
		"collection", l.collection,
		"max_concurrency", l.concurrency,
	)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	sem := make(chan struct{}, l.concurrency)

	it := l.client.Collection(l.collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("firestore listener shutting down")
				return ctx.Err()
			}
			return err
		}

		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			rec, err := decode(change.Doc)
			if err != nil {
				l.logger.Error("skipping undecodable document", "record_id", change.Doc.Ref.ID, "error", err)
				telemetry.CaptureError(err, map[string]interface{}{"record_id": change.Doc.Ref.ID})
				continue
			}

			ev, ok := orderCreated(*rec, change.Doc.CreateTime, since)
			if !ok {
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer func() { <-sem }()
				// A started run finishes even if shutdown begins.
				outcome := l.orders.HandleOrderCreated(context.WithoutCancel(ctx), ev)
				l.logger.Info("invoice workflow finished", "record_id", ev.RecordID, "outcome", outcome)
			}()
		}
	}
}
