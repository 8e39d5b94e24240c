package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Run() Run
	Staging() Staging
	Production() Production
	QualityCheck() QualityCheck
	ErrorLog() ErrorLog
	Report() Report
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db           *gorm.DB
	run          Run
	staging      Staging
	production   Production
	qualityCheck QualityCheck
	errorLog     ErrorLog
	report       Report
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:           db,
		run:          NewRunStore(db),
		staging:      NewStagingStore(db),
		production:   NewProductionStore(db),
		qualityCheck: NewQualityCheckStore(db),
		errorLog:     NewErrorLogStore(db),
		report:       NewReportStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Run() Run {
	return s.run
}

func (s *DataStore) Staging() Staging {
	return s.staging
}

func (s *DataStore) Production() Production {
	return s.production
}

func (s *DataStore) QualityCheck() QualityCheck {
	return s.qualityCheck
}

func (s *DataStore) ErrorLog() ErrorLog {
	return s.errorLog
}

func (s *DataStore) Report() Report {
	return s.report
}

func (s *DataStore) InitialMigration() error {
	for _, m := range []interface{ InitialMigration() error }{
		s.run.(*RunStore),
		s.staging.(*StagingStore),
		s.production.(*ProductionStore),
		s.qualityCheck.(*QualityCheckStore),
		s.errorLog.(*ErrorLogStore),
	} {
		if err := m.InitialMigration(); err != nil {
			return err
		}
	}
	return nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
