package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
)

// RunFilter narrows the run listing.
type RunFilter struct {
	SourceType   model.SourceType
	Status       model.RunStatus
	StartedAfter time.Time
	Limit        int
}

// ReportService exposes the read-only views over runs, quality checks and the
// error log.
type ReportService struct {
	store store.Store
}

func NewReportService(s store.Store) *ReportService {
	return &ReportService{store: s}
}

func (s *ReportService) ListRuns(ctx context.Context, filter RunFilter) (model.RunList, error) {
	qf := store.NewRunQueryFilter()
	if filter.SourceType != "" {
		qf = qf.BySourceType(filter.SourceType)
	}
	if filter.Status != "" {
		qf = qf.ByStatus(filter.Status)
	}
	if !filter.StartedAfter.IsZero() {
		qf = qf.StartedAfter(filter.StartedAfter)
	}
	if filter.Limit > 0 {
		qf = qf.Limit(filter.Limit)
	}

	runs, err := s.store.Run().List(ctx, qf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

func (s *ReportService) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	run, err := s.store.Run().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrRunNotFound(id)
		}
		return nil, err
	}
	return run, nil
}

func (s *ReportService) RunChecks(ctx context.Context, id uuid.UUID) (model.QualityCheckList, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return s.store.QualityCheck().ListByRun(ctx, id)
}

func (s *ReportService) RunErrors(ctx context.Context, id uuid.UUID) (model.ErrorRecordList, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ErrorLog().ListByRun(ctx, id)
}

func (s *ReportService) RecentErrors(ctx context.Context, window time.Duration, limit int) (model.ErrorRecordList, error) {
	if window <= 0 {
		return nil, NewErrInvalidQuery("window must be positive")
	}
	return s.store.Report().RecentErrors(ctx, window, limit)
}

func (s *ReportService) LatestWeather(ctx context.Context) ([]model.WeatherMetric, error) {
	return s.store.Report().LatestWeather(ctx)
}

func (s *ReportService) RunSummary(ctx context.Context, since time.Time) ([]store.RunSummaryRow, error) {
	return s.store.Report().RunSummary(ctx, since)
}
