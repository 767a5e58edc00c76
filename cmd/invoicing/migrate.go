package main

import (
	"fmt"

	"github.com/boddenberg/invoicing-bfa-go/internal/config"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			switch cfg.Backend {
			case config.BackendSQLite:
				store, err := sqlite.New(cfg.SQLitePath, logger)
				if err != nil {
					return err
				}
				defer store.Close()

				v, err := store.Version(ctx)
				if err != nil {
					return err
				}
				logger.Info("sqlite schema ready", zap.String("path", cfg.SQLitePath), zap.Int("version", v))

			case config.BackendPostgres:
				pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2)
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := postgres.Migrate(ctx, pool); err != nil {
					return err
				}
				logger.Info("postgres schema ready")

			default:
				return fmt.Errorf("the %s schema is managed by the hosted project", cfg.Backend)
			}
			return nil
		},
	}
}
