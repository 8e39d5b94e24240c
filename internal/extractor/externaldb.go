package extractor

import (
	"context"
	"iter"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store/model"
)

// ExternalDBExtractor reads partner business records out of a remote database
// table. The connection is opened lazily on the first extraction so a partner
// outage does not block process startup.
type ExternalDBExtractor struct {
	dsn   string
	table string
	db    *gorm.DB
}

func NewExternalDBExtractor(dsn, table string) *ExternalDBExtractor {
	return &ExternalDBExtractor{dsn: dsn, table: table}
}

// NewExternalDBExtractorWithDB wires an already open handle. Used by tests.
func NewExternalDBExtractorWithDB(db *gorm.DB, table string) *ExternalDBExtractor {
	return &ExternalDBExtractor{db: db, table: table}
}

func (e *ExternalDBExtractor) SourceType() model.SourceType {
	return model.SourceExternalDB
}

func (e *ExternalDBExtractor) Extract(ctx context.Context) iter.Seq2[model.RawRecord, error] {
	return func(yield func(model.RawRecord, error) bool) {
		db, err := e.connect()
		if err != nil {
			yield(model.RawRecord{}, pipeline.NewTransientExtractionError(err))
			return
		}

		rows := []map[string]any{}
		if err := db.WithContext(ctx).Table(e.table).Find(&rows).Error; err != nil {
			yield(model.RawRecord{}, pipeline.NewTransientExtractionError(errors.Wrapf(err, "failed to query %s", e.table)))
			return
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				yield(model.RawRecord{}, err)
				return
			}

			payload := model.JSONMap{}
			for column, value := range row {
				payload[column] = normalizeColumn(value)
			}

			record := model.RawRecord{
				SourceType:  model.SourceExternalDB,
				Payload:     payload,
				ExtractedAt: time.Now().UTC(),
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (e *ExternalDBExtractor) connect() (*gorm.DB, error) {
	if e.db != nil {
		return e.db, nil
	}

	db, err := gorm.Open(postgres.Open(e.dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to external database")
	}
	e.db = db
	return db, nil
}

func normalizeColumn(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return value
	}
}
