// Package cli implements the invoicectl admin commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/invoicer/internal"
	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/firestore"
	"github.com/dukerupert/invoicer/internal/postgres"
)

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Administer the invoicer service",
		Long:          "invoicectl applies migrations, submits order requests, inspects invoice records and signs webhook payloads for replay.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newSignCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show invoicectl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "invoicectl %s (%s)\n", version, commit)
			return nil
		},
	}
}

// loadConfig reads the service configuration and builds a logger writing to
// the command's stderr.
func loadConfig(cmd *cobra.Command) (*internal.Config, *slog.Logger, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	return cfg, internal.NewLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel), nil
}

// openStore opens the configured record store. The memory driver holds no
// shared state and cannot be administered from outside the server.
func openStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (domain.InvoiceRecordStore, func(), error) {
	switch cfg.StoreDriver {
	case internal.StoreDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewInvoiceStore(pool, logger), pool.Close, nil
	case internal.StoreDriverFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return firestore.NewStore(client, cfg.Firestore.Collection, logger), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("STORE_DRIVER=%s cannot be administered with invoicectl", cfg.StoreDriver)
}
