package store

import (
	"context"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"gorm.io/gorm"
)

// RunSummaryRow aggregates runs by (pipeline_name, source_type, status).
type RunSummaryRow struct {
	PipelineName       string           `json:"pipeline_name"`
	SourceType         model.SourceType `json:"source_type"`
	Status             model.RunStatus  `json:"status"`
	Runs               int64            `json:"runs"`
	RecordsExtracted   int64            `json:"records_extracted"`
	RecordsLoaded      int64            `json:"records_loaded"`
	RecordsFailed      int64            `json:"records_failed"`
	AvgDurationSeconds float64          `json:"avg_duration_seconds"`
}

// Report serves the derived views consumed by external reporting tools.
type Report interface {
	LatestWeather(ctx context.Context) ([]model.WeatherMetric, error)
	RunSummary(ctx context.Context, since time.Time) ([]RunSummaryRow, error)
	RecentErrors(ctx context.Context, window time.Duration, limit int) (model.ErrorRecordList, error)
}

type ReportStore struct {
	db *gorm.DB
}

var _ Report = (*ReportStore)(nil)

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// LatestWeather is the latest-value-per-key projection over weather_metrics.
func (s *ReportStore) LatestWeather(ctx context.Context) ([]model.WeatherMetric, error) {
	var metrics []model.WeatherMetric
	latest := s.db.Model(&model.WeatherMetric{}).
		Select("city, country, MAX(recorded_at) AS recorded_at").
		Group("city, country")

	err := s.getDB(ctx).
		Joins("JOIN (?) AS latest ON weather_metrics.city = latest.city AND weather_metrics.country = latest.country AND weather_metrics.recorded_at = latest.recorded_at", latest).
		Order("weather_metrics.city").
		Find(&metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

func (s *ReportStore) RunSummary(ctx context.Context, since time.Time) ([]RunSummaryRow, error) {
	var rows []RunSummaryRow
	err := s.getDB(ctx).Model(&model.Run{}).
		Select(`pipeline_name, source_type, status,
			COUNT(*) AS runs,
			SUM(records_extracted) AS records_extracted,
			SUM(records_loaded) AS records_loaded,
			SUM(records_failed) AS records_failed,
			AVG(COALESCE(duration_seconds, 0)) AS avg_duration_seconds`).
		Where("start_time >= ?", since).
		Group("pipeline_name, source_type, status").
		Order("pipeline_name, source_type, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ReportStore) RecentErrors(ctx context.Context, window time.Duration, limit int) (model.ErrorRecordList, error) {
	var records model.ErrorRecordList
	tx := s.getDB(ctx).
		Where("created_at >= ?", time.Now().Add(-window)).
		Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
