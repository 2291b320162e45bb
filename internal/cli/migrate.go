package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/invoicer/internal"
)

func newMigrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Apply the embedded goose migrations to DATABASE_URL. With --status only the current version is printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != internal.StoreDriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
			}

			db, err := internal.OpenDatabase(cfg.DatabaseUrl)
			if err != nil {
				return err
			}
			defer db.Close()

			if !statusOnly {
				logger.Info("Running database migrations...")
				if err := internal.RunMigrations(db); err != nil {
					return err
				}
			}

			v, err := internal.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the schema version without migrating")
	return cmd
}
