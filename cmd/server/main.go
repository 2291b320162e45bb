package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/invoicer/internal"
	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/handler"
	"github.com/dukerupert/invoicer/internal/handler/webhook"
	"github.com/dukerupert/invoicer/internal/identity"
	"github.com/dukerupert/invoicer/internal/middleware"
	"github.com/dukerupert/invoicer/internal/notify"
	"github.com/dukerupert/invoicer/internal/router"
	"github.com/dukerupert/invoicer/internal/routes"
	"github.com/dukerupert/invoicer/internal/service"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Error tracking and business metrics
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics("invoicer")

	// Initialize Stripe billing client
	logger.Info("Initializing Stripe billing client...")
	stripeConfig := billing.StripeConfig{
		APIKey:            cfg.Stripe.SecretKey,
		WebhookSecret:     cfg.Stripe.WebhookSecret,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		BackendURL:        cfg.Stripe.BackendURL,
	}
	stripeClient, err := billing.NewStripeClient(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe client: %w", err)
	}
	billingClient := billing.NewInstrumented(stripeClient)
	logger.Info("Stripe billing client initialized", "test_mode", stripeConfig.IsTestMode())

	resolver, err := newIdentityResolver(ctx, cfg)
	if err != nil {
		return err
	}

	var notifier notify.Publisher = notify.Noop{}
	if cfg.NATSURL != "" {
		pub, err := notify.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = pub
	}

	// Record store and the trigger source that feeds the workflow
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	workflow := service.NewInvoiceWorkflow(billingClient, be.store, resolver, notifier, service.WorkflowConfig{
		DaysUntilDue: cfg.Invoice.DaysUntilDue,
		CreatedBy:    cfg.Invoice.CreatedBy,
	}, logger)
	reconciler := service.NewReconciler(billingClient, be.store, notifier, cfg.Stripe.WebhookSecret, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	metrics := middleware.NewMetrics("invoicer", routes.Paths()...)

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(reconciler).HandleWebhook,
	})
	routes.RegisterOrderRoutes(r, routes.OrderDeps{
		CreateHandler: handler.NewOrderHandler(be.store).Create,
	})
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health:  handler.Health(be.health),
		Metrics: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ==========================================================================
	// Start server and trigger consumer
	// ==========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := be.trigger(gctx, workflow)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s trigger failed: %w", cfg.StoreDriver, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newIdentityResolver(ctx context.Context, cfg *internal.Config) (identity.Resolver, error) {
	switch cfg.Identity.Provider {
	case internal.IdentityProviderFirebase:
		return identity.NewFirebaseResolver(ctx, cfg.Identity.ProjectID)
	case internal.IdentityProviderHTTP:
		return identity.NewHTTPResolver(cfg.Identity.URL, cfg.Identity.Timeout), nil
	default:
		return identity.None{}, nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
