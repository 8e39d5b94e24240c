package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
)

var _ = Describe("error log store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		s, gormdb = openTestStore()
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM error_log;")
	})

	Context("append", func() {
		It("persists the dead-letter record with its payload", func() {
			runID := uuid.New()
			record := &model.ErrorRecord{
				RunID:      runID,
				SourceType: model.SourceCSVFile,
				ErrorType:  model.ErrorTypeValidation,
				Message:    "amount out of range",
				Details:    "range_violation",
				RawPayload: model.JSONMap{"transaction_id": "txn-1", "amount": -5},
			}
			Expect(s.ErrorLog().Append(context.TODO(), record)).To(BeNil())
			Expect(record.ID).NotTo(BeZero())

			records, err := s.ErrorLog().ListByRun(context.TODO(), runID)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
			Expect(records[0].RawPayload["transaction_id"]).To(Equal("txn-1"))
			Expect(records[0].Resolved).To(BeFalse())
		})
	})

	Context("retry count", func() {
		It("increments in place", func() {
			record := &model.ErrorRecord{
				RunID:      uuid.New(),
				SourceType: model.SourceWeatherAPI,
				ErrorType:  model.ErrorTypeExtraction,
				Message:    "connection refused",
			}
			Expect(s.ErrorLog().Append(context.TODO(), record)).To(BeNil())

			for i := 0; i < 3; i++ {
				Expect(s.ErrorLog().IncrementRetry(context.TODO(), record.ID)).To(BeNil())
			}

			records, err := s.ErrorLog().ListByRun(context.TODO(), record.RunID)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
			Expect(records[0].RetryCount).To(Equal(3))
		})
	})

	Context("recent", func() {
		It("returns only records inside the window", func() {
			recent := &model.ErrorRecord{
				RunID:      uuid.New(),
				SourceType: model.SourceWeatherAPI,
				ErrorType:  model.ErrorTypeLoading,
				Message:    "recent failure",
			}
			Expect(s.ErrorLog().Append(context.TODO(), recent)).To(BeNil())

			old := &model.ErrorRecord{
				RunID:      uuid.New(),
				SourceType: model.SourceWeatherAPI,
				ErrorType:  model.ErrorTypeLoading,
				Message:    "old failure",
			}
			Expect(s.ErrorLog().Append(context.TODO(), old)).To(BeNil())
			gormdb.Exec("UPDATE error_log SET created_at = ? WHERE id = ?;", time.Now().Add(-48*time.Hour), old.ID)

			records, err := s.ErrorLog().ListRecent(context.TODO(), time.Now().Add(-24*time.Hour), 10)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Message).To(Equal("recent failure"))
		})
	})

	Context("resolve", func() {
		It("marks the record resolved", func() {
			record := &model.ErrorRecord{
				RunID:      uuid.New(),
				SourceType: model.SourceExternalDB,
				ErrorType:  model.ErrorTypeLoading,
				Message:    "constraint failure",
			}
			Expect(s.ErrorLog().Append(context.TODO(), record)).To(BeNil())
			Expect(s.ErrorLog().Resolve(context.TODO(), record.ID)).To(BeNil())

			records, err := s.ErrorLog().ListByRun(context.TODO(), record.RunID)
			Expect(err).To(BeNil())
			Expect(records[0].Resolved).To(BeTrue())
		})
	})
})
