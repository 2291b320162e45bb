package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/invoicer/internal"
	"github.com/dukerupert/invoicer/internal/jobs"
	"github.com/dukerupert/invoicer/internal/postgres"
	"github.com/dukerupert/invoicer/internal/repository"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage the Postgres job queue",
	}
	cmd.AddCommand(newJobsCleanupCmd())
	return cmd
}

func newJobsCleanupCmd() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Schedule removal of finished jobs",
		Long:  "Enqueue a cleanup job that deletes completed and failed jobs older than the retention period.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if retention <= 0 {
				return fmt.Errorf("--retention must be positive")
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != internal.StoreDriverPostgres {
				return fmt.Errorf("jobs cleanup requires STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
			}

			pool, err := postgres.Connect(cmd.Context(), cfg.DatabaseUrl)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := jobs.EnqueueCleanupFinishedJobs(cmd.Context(), repository.New(pool), retention); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleanup scheduled for jobs finished more than %s ago\n", retention)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", jobs.DefaultJobRetention, "age after which finished jobs are deleted")
	return cmd
}
