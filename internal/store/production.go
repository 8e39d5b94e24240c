package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dataforge/ingest/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertOutcome describes what an idempotent load did to the production row.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertNoop
)

type Production interface {
	Upsert(ctx context.Context, record model.ProductionRecord) (UpsertOutcome, error)
	ExistsColumnValue(ctx context.Context, sourceType model.SourceType, column string, value any) (bool, error)
	Count(ctx context.Context, sourceType model.SourceType) (int64, error)
	InitialMigration() error
}

type ProductionStore struct {
	db *gorm.DB
}

var _ Production = (*ProductionStore)(nil)

func NewProductionStore(db *gorm.DB) *ProductionStore {
	return &ProductionStore{db: db}
}

func (s *ProductionStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.WeatherMetric{},
		&model.Transaction{},
		&model.WebContent{},
		&model.BusinessRecord{},
	)
}

func (s *ProductionStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Upsert inserts the record or updates the existing row sharing its natural
// key. Re-loading an identical record is a no-op. The read and the write run
// inside the caller's transaction when one is carried by the context, which
// also serializes concurrent writes to the same key.
func (s *ProductionStore) Upsert(ctx context.Context, record model.ProductionRecord) (UpsertOutcome, error) {
	db := s.getDB(ctx)

	switch rec := record.(type) {
	case *model.WeatherMetric:
		var existing model.WeatherMetric
		err := db.Where("city = ? AND country = ? AND recorded_at = ?", rec.City, rec.Country, rec.RecordedAt).
			First(&existing).Error
		return s.finishUpsert(db, rec, &existing, err,
			existing.EqualContent(*rec),
			[]clause.Column{{Name: "city"}, {Name: "country"}, {Name: "recorded_at"}})
	case *model.Transaction:
		var existing model.Transaction
		err := db.Where("transaction_id = ?", rec.TransactionID).First(&existing).Error
		return s.finishUpsert(db, rec, &existing, err,
			existing.EqualContent(*rec),
			[]clause.Column{{Name: "transaction_id"}})
	case *model.WebContent:
		var existing model.WebContent
		err := db.Where("source_url = ? AND published_date = ?", rec.SourceURL, rec.PublishedDate).
			First(&existing).Error
		return s.finishUpsert(db, rec, &existing, err,
			existing.EqualContent(*rec),
			[]clause.Column{{Name: "source_url"}, {Name: "published_date"}})
	case *model.BusinessRecord:
		var existing model.BusinessRecord
		err := db.Where("business_id = ?", rec.BusinessID).First(&existing).Error
		return s.finishUpsert(db, rec, &existing, err,
			existing.EqualContent(*rec),
			[]clause.Column{{Name: "business_id"}})
	default:
		return UpsertNoop, fmt.Errorf("unsupported production record type %T", record)
	}
}

// finishUpsert resolves the read-before-write outcome: insert when absent,
// no-op when identical, update in place otherwise. The insert still carries an
// ON CONFLICT clause so a concurrent writer racing the read cannot duplicate
// the natural key.
func (s *ProductionStore) finishUpsert(db *gorm.DB, record, existing any, readErr error, identical bool, keyColumns []clause.Column) (UpsertOutcome, error) {
	if readErr != nil {
		if !errors.Is(readErr, gorm.ErrRecordNotFound) {
			return UpsertNoop, readErr
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   keyColumns,
			UpdateAll: true,
		}).Create(record).Error
		if err != nil {
			return UpsertNoop, err
		}
		return UpsertInserted, nil
	}

	if identical {
		return UpsertNoop, nil
	}

	if err := db.Model(existing).Select("*").Omit("id", "created_at").Updates(record).Error; err != nil {
		return UpsertNoop, err
	}
	return UpsertUpdated, nil
}

func (s *ProductionStore) modelFor(sourceType model.SourceType) (any, error) {
	switch sourceType {
	case model.SourceWeatherAPI:
		return &model.WeatherMetric{}, nil
	case model.SourceCSVFile:
		return &model.Transaction{}, nil
	case model.SourceWebScrape:
		return &model.WebContent{}, nil
	case model.SourceExternalDB:
		return &model.BusinessRecord{}, nil
	}
	return nil, fmt.Errorf("unknown source type %q", sourceType)
}

// ExistsColumnValue backs the uniqueness quality check's target-table lookup.
func (s *ProductionStore) ExistsColumnValue(ctx context.Context, sourceType model.SourceType, column string, value any) (bool, error) {
	m, err := s.modelFor(sourceType)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.getDB(ctx).Model(m).Where(fmt.Sprintf("%s = ?", column), value).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *ProductionStore) Count(ctx context.Context, sourceType model.SourceType) (int64, error) {
	m, err := s.modelFor(sourceType)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.getDB(ctx).Model(m).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
