package store

import (
	"context"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Staging interface {
	Append(ctx context.Context, records []model.StagedRecord) error
	ListByRun(ctx context.Context, runID uuid.UUID, sourceType model.SourceType) ([]model.StagedRecord, error)
	DeleteByRun(ctx context.Context, runID uuid.UUID, sourceType model.SourceType) error
	DeleteOlderThan(ctx context.Context, sourceType model.SourceType, cutoff time.Time) (int64, error)
	InitialMigration() error
}

type StagingStore struct {
	db *gorm.DB
}

var _ Staging = (*StagingStore)(nil)

func NewStagingStore(db *gorm.DB) *StagingStore {
	return &StagingStore{db: db}
}

func (s *StagingStore) InitialMigration() error {
	for _, sourceType := range model.SourceTypes() {
		if err := s.db.Table(model.StagingTable(sourceType)).AutoMigrate(&model.StagedRecord{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *StagingStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Append writes raw envelopes to the staging table of their source type.
// Records in one call must share a source type; mixed batches are split by the caller.
func (s *StagingStore) Append(ctx context.Context, records []model.StagedRecord) error {
	if len(records) == 0 {
		return nil
	}
	table := model.StagingTable(records[0].SourceType)
	return s.getDB(ctx).Table(table).Create(&records).Error
}

func (s *StagingStore) ListByRun(ctx context.Context, runID uuid.UUID, sourceType model.SourceType) ([]model.StagedRecord, error) {
	var records []model.StagedRecord
	err := s.getDB(ctx).
		Table(model.StagingTable(sourceType)).
		Where("run_id = ?", runID).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByRun clears a run's staged rows. Used when a failed extraction
// attempt is restarted from the beginning, so a retry never double-stages.
func (s *StagingStore) DeleteByRun(ctx context.Context, runID uuid.UUID, sourceType model.SourceType) error {
	return s.getDB(ctx).
		Table(model.StagingTable(sourceType)).
		Where("run_id = ?", runID).
		Delete(&model.StagedRecord{}).Error
}

// DeleteOlderThan removes staged rows past the retention window, but only for
// runs that already reached a terminal status.
func (s *StagingStore) DeleteOlderThan(ctx context.Context, sourceType model.SourceType, cutoff time.Time) (int64, error) {
	terminalRuns := s.db.Model(&model.Run{}).
		Select("id").
		Where("status <> ?", model.RunStatusRunning)

	result := s.getDB(ctx).
		Table(model.StagingTable(sourceType)).
		Where("staged_at < ? AND run_id IN (?)", cutoff, terminalRuns).
		Delete(&model.StagedRecord{})
	return result.RowsAffected, result.Error
}
