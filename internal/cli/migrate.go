package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	kvpostgres "profilereg/internal/kv/postgres"
	"profilereg/internal/notify/outbox"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/postgres"
)

func migrateCmd() *cobra.Command {
	var dsn string

	c := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres storage and outbox schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dsn = cfg.Storage.PostgresDSN
			}
			if dsn == "" {
				return fmt.Errorf("no postgres DSN: set DATABASE_URL or pass --dsn")
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := kvpostgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("storage schema: %w", err)
			}
			if err := outbox.Migrate(ctx, db); err != nil {
				return fmt.Errorf("outbox schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}

	c.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to storage.postgres_dsn)")
	return c
}
