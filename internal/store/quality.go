package store

import (
	"context"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QualityCheck interface {
	Append(ctx context.Context, results []model.QualityCheck) error
	ListByRun(ctx context.Context, runID uuid.UUID) (model.QualityCheckList, error)
	InitialMigration() error
}

type QualityCheckStore struct {
	db *gorm.DB
}

var _ QualityCheck = (*QualityCheckStore)(nil)

func NewQualityCheckStore(db *gorm.DB) *QualityCheckStore {
	return &QualityCheckStore{db: db}
}

func (s *QualityCheckStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.QualityCheck{})
}

func (s *QualityCheckStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *QualityCheckStore) Append(ctx context.Context, results []model.QualityCheck) error {
	if len(results) == 0 {
		return nil
	}
	return s.getDB(ctx).Create(&results).Error
}

func (s *QualityCheckStore) ListByRun(ctx context.Context, runID uuid.UUID) (model.QualityCheckList, error) {
	var results model.QualityCheckList
	err := s.getDB(ctx).Where("run_id = ?", runID).Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
