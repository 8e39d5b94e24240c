package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dataforge/ingest/internal/config"
	"github.com/dataforge/ingest/internal/events"
	"github.com/dataforge/ingest/internal/extractor"
	"github.com/dataforge/ingest/internal/loader"
	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/quality"
	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
	"github.com/dataforge/ingest/internal/transform"
	"github.com/dataforge/ingest/pkg/log"
)

const staleRunThreshold = 24 * time.Hour

type runOptions struct {
	Sources []string
}

func (o *runOptions) Bind(fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.Sources, "source", nil, "source types to run (default: all)")
}

var runOpts = &runOptions{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one ingestion run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Named("ingest").Info("starting ingestion run")

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

		warnStaleRuns(ctx, s)

		sources, err := resolveSources(runOpts.Sources)
		if err != nil {
			return err
		}

		suites, err := quality.LoadSuites(cfg.Pipeline.CheckSpecsFolder)
		if err != nil {
			return err
		}
		engine := quality.NewEngine(quality.WithKeyChecker(
			func(ctx context.Context, sourceType model.SourceType, column string, value any) (bool, error) {
				return s.Production().ExistsColumnValue(ctx, sourceType, column, value)
			},
		))

		extractors, err := buildExtractors(cfg)
		if err != nil {
			return err
		}

		producer := newEventProducer(cfg)
		defer func() { _ = producer.Close() }()

		orchestrator := pipeline.NewOrchestrator(
			s,
			transform.NewStage(engine, suites),
			loader.New(s, cfg.Pipeline.ChunkSize),
			extractors,
			pipeline.WithPipelineName(cfg.Pipeline.Name),
			pipeline.WithMaxRetries(cfg.Pipeline.MaxRetries),
			pipeline.WithRetryBaseDelay(cfg.Pipeline.RetryBaseDelay),
			pipeline.WithEventProducer(producer),
			pipeline.WithWarningsAffectStatus(cfg.Pipeline.WarningsAffectStatus),
		)

		if err := orchestrator.Execute(ctx, sources); err != nil {
			zap.S().Named("ingest").Errorw("ingestion run finished with errors", "error", err)
			return err
		}

		zap.S().Named("ingest").Info("ingestion run finished")
		return nil
	},
}

func init() {
	runOpts.Bind(runCmd.Flags())
}

func resolveSources(names []string) ([]model.SourceType, error) {
	if len(names) == 0 {
		return model.SourceTypes(), nil
	}

	sources := make([]model.SourceType, 0, len(names))
	for _, name := range names {
		sourceType := model.SourceType(name)
		if model.StagingTable(sourceType) == "" {
			return nil, fmt.Errorf("unknown source type %q", name)
		}
		sources = append(sources, sourceType)
	}
	return sources, nil
}

// warnStaleRuns surfaces runs stuck in running, likely left behind by a
// crashed process. They are reported, never mutated.
func warnStaleRuns(ctx context.Context, s store.Store) {
	stale, err := s.Run().StaleRunning(ctx, staleRunThreshold)
	if err != nil {
		zap.S().Named("ingest").Warnw("failed to check for stale runs", "error", err)
		return
	}
	for _, run := range stale {
		zap.S().Named("ingest").Warnw("found stale running run",
			"run_id", run.ID, "source", run.SourceType, "started", run.StartTime)
	}
}

func buildExtractors(cfg *config.Config) ([]pipeline.Extractor, error) {
	sources, err := extractor.LoadSources(cfg.Pipeline.SourcesFile)
	if err != nil {
		return nil, err
	}

	dataFolder := sources.Files.Folder
	if dataFolder == "" {
		dataFolder = cfg.Pipeline.DataFolder
	}
	if !filepath.IsAbs(dataFolder) {
		if wd, err := os.Getwd(); err == nil {
			dataFolder = filepath.Join(wd, dataFolder)
		}
	}

	return []pipeline.Extractor{
		extractor.NewWeatherExtractor(nil, cfg.Pipeline.WeatherAPIURL, cfg.Pipeline.WeatherAPIKey, sources.Weather.Cities),
		extractor.NewFileExtractor(dataFolder),
		extractor.NewWebExtractor(nil, sources.Web.URLs),
		extractor.NewExternalDBExtractor(cfg.Pipeline.ExternalDBDSN, sources.ExternalDB.Table),
	}, nil
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	var writer events.Writer = &events.StdoutWriter{}
	if len(cfg.Service.Kafka.Brokers) > 0 {
		kafkaWriter, err := events.NewKafkaWriter(cfg.Service.Kafka.Brokers, cfg.Service.Kafka.SaramaConfig)
		if err != nil {
			zap.S().Named("ingest").Warnw("failed to connect to kafka, falling back to stdout", "error", err)
		} else {
			writer = kafkaWriter
		}
	}

	opts := []events.ProducerOptions{}
	if cfg.Service.Kafka.Topic != "" {
		opts = append(opts, events.WithOutputTopic(cfg.Service.Kafka.Topic))
	}
	return events.NewEventProducer(writer, opts...)
}
