package main

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/persistence"
)

var errMissingDSN = errors.New("POSTGRES_DSN is required")

func main() {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "migrate up|down",
		Long:  `Applies or rolls back the user service schema`,
	}
	root.AddCommand(newMigrateCmd(persistence.MigrateUp, "Applies all pending migrations"))
	root.AddCommand(newMigrateCmd(persistence.MigrateDown, "Rolls back all migrations"))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMigrateCmd(direction, long string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: "migrate " + direction,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(direction)
		},
	}
}

func run(direction string) error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		logger.Error("POSTGRES_DSN is required")
		return errMissingDSN
	}
	if err := persistence.RunMigrations(cfg.Postgres.DSN, direction, logger); err != nil {
		logger.Error("migration failed", zap.String("direction", direction), zap.Error(err))
		return err
	}
	return nil
}
