package store

import (
	"context"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ErrorLog interface {
	Append(ctx context.Context, record *model.ErrorRecord) error
	IncrementRetry(ctx context.Context, id uint) error
	ListByRun(ctx context.Context, runID uuid.UUID) (model.ErrorRecordList, error)
	ListRecent(ctx context.Context, since time.Time, limit int) (model.ErrorRecordList, error)
	// Resolve is for external remediation tooling; the pipeline never calls it.
	Resolve(ctx context.Context, id uint) error
	InitialMigration() error
}

type ErrorLogStore struct {
	db *gorm.DB
}

var _ ErrorLog = (*ErrorLogStore)(nil)

func NewErrorLogStore(db *gorm.DB) *ErrorLogStore {
	return &ErrorLogStore{db: db}
}

func (s *ErrorLogStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.ErrorRecord{})
}

func (s *ErrorLogStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *ErrorLogStore) Append(ctx context.Context, record *model.ErrorRecord) error {
	return s.getDB(ctx).Create(record).Error
}

func (s *ErrorLogStore) IncrementRetry(ctx context.Context, id uint) error {
	return s.getDB(ctx).Model(&model.ErrorRecord{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (s *ErrorLogStore) ListByRun(ctx context.Context, runID uuid.UUID) (model.ErrorRecordList, error) {
	var records model.ErrorRecordList
	err := s.getDB(ctx).Where("run_id = ?", runID).Order("id").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ErrorLogStore) ListRecent(ctx context.Context, since time.Time, limit int) (model.ErrorRecordList, error) {
	var records model.ErrorRecordList
	tx := s.getDB(ctx).Where("created_at >= ?", since).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ErrorLogStore) Resolve(ctx context.Context, id uint) error {
	result := s.getDB(ctx).Model(&model.ErrorRecord{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
