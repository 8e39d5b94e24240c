package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/dataforge/ingest/internal/api_server"
	"github.com/dataforge/ingest/internal/config"
	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
	"github.com/dataforge/ingest/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Named("ingest").Info("starting reporting API service")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Named("ingest").Fatalw("failed to initialize data store", "error", err)
		}
		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Named("ingest").Fatalw("failed to run initial migration", "error", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Named("ingest").Fatalw("failed to create listener", "error", err)
			}

			server := apiserver.New(cfg, s, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Named("ingest").Fatalw("api server stopped with error", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Named("ingest").Fatalw("failed to create metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Named("ingest").Fatalw("metrics server stopped with error", "error", err)
			}
		}()

		sweeper := pipeline.NewSweeper(s, cfg.Pipeline.StagingRetention, cfg.Pipeline.SweepInterval, model.SourceTypes())
		go sweeper.Run(ctx)

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
