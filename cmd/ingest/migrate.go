package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dataforge/ingest/internal/config"
	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/pkg/log"
	"github.com/dataforge/ingest/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Named("ingest").Fatalw("failed to initialize data store", "error", err)
		}
		s := store.NewStore(db)
		defer s.Close()

		if cfg.Service.MigrationFolder != "" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				return err
			}
			zap.S().Named("ingest").Info("db migrated")
			return nil
		}

		if err := s.InitialMigration(); err != nil {
			return err
		}
		zap.S().Named("ingest").Info("db migrated")
		return nil
	},
}
