package pipeline

import (
	"context"
	"time"

	jitterbug "github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
)

// Sweeper prunes staged records that are older than the retention window and
// belong to terminal runs. Rows of a run still in flight are never touched.
type Sweeper struct {
	store     store.Store
	retention time.Duration
	interval  time.Duration
	sources   []model.SourceType
}

func NewSweeper(s store.Store, retention, interval time.Duration, sources []model.SourceType) *Sweeper {
	return &Sweeper{
		store:     s,
		retention: retention,
		interval:  interval,
		sources:   sources,
	}
}

// Run blocks until the context is canceled, sweeping on a jittered interval.
func (s *Sweeper) Run(ctx context.Context) {
	logger := zap.S().Named("sweeper")
	logger.Infow("staging sweeper started", "retention", s.retention, "interval", s.interval)

	ticker := jitterbug.New(s.interval, &jitterbug.Norm{Stdev: 30 * time.Second})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("staging sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	logger := zap.S().Named("sweeper")
	cutoff := time.Now().Add(-s.retention)

	for _, sourceType := range s.sources {
		deleted, err := s.store.Staging().DeleteOlderThan(ctx, sourceType, cutoff)
		if err != nil {
			logger.Errorw("failed to prune staged records", "source", sourceType, "error", err)
			continue
		}
		if deleted > 0 {
			logger.Infow("pruned staged records", "source", sourceType, "deleted", deleted)
		}
	}
}
