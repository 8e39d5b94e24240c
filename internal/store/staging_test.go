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

var _ = Describe("staging store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM stg_weather;")
		gormdb.Exec("DELETE FROM stg_transactions;")
		gormdb.Exec("DELETE FROM pipeline_runs;")
	})

	stagedRecord := func(runID uuid.UUID, sourceType model.SourceType, city string) model.StagedRecord {
		return model.StagedRecord{
			RunID:       runID,
			SourceType:  sourceType,
			Payload:     model.JSONMap{"city": city},
			ExtractedAt: time.Now(),
		}
	}

	Context("append and list", func() {
		It("routes records to the table of their source type", func() {
			runID := uuid.New()
			err := s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(runID, model.SourceWeatherAPI, "london"),
				stagedRecord(runID, model.SourceWeatherAPI, "paris"),
			})
			Expect(err).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM stg_weather;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(2))

			err = gormdb.Raw("SELECT COUNT(*) FROM stg_transactions;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("lists a run's records in staging order", func() {
			runID := uuid.New()
			err := s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(runID, model.SourceWeatherAPI, "first"),
				stagedRecord(runID, model.SourceWeatherAPI, "second"),
			})
			Expect(err).To(BeNil())
			err = s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(uuid.New(), model.SourceWeatherAPI, "other-run"),
			})
			Expect(err).To(BeNil())

			records, err := s.Staging().ListByRun(context.TODO(), runID, model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Payload["city"]).To(Equal("first"))
			Expect(records[1].Payload["city"]).To(Equal("second"))
		})
	})

	Context("delete by run", func() {
		It("removes only the run's rows", func() {
			runID := uuid.New()
			otherID := uuid.New()
			err := s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(runID, model.SourceWeatherAPI, "mine"),
				stagedRecord(otherID, model.SourceWeatherAPI, "other"),
			})
			Expect(err).To(BeNil())

			Expect(s.Staging().DeleteByRun(context.TODO(), runID, model.SourceWeatherAPI)).To(BeNil())

			records, err := s.Staging().ListByRun(context.TODO(), otherID, model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))

			records, err = s.Staging().ListByRun(context.TODO(), runID, model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(records).To(BeEmpty())
		})
	})

	Context("retention", func() {
		It("prunes old rows of terminal runs only", func() {
			oldStamp := time.Now().Add(-10 * 24 * time.Hour)

			terminal, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, oldStamp)
			Expect(err).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), terminal.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			active, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, oldStamp)
			Expect(err).To(BeNil())

			err = s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(terminal.ID, model.SourceWeatherAPI, "done"),
				stagedRecord(active.ID, model.SourceWeatherAPI, "in-flight"),
			})
			Expect(err).To(BeNil())
			gormdb.Exec("UPDATE stg_weather SET staged_at = ?;", oldStamp)

			deleted, err := s.Staging().DeleteOlderThan(context.TODO(), model.SourceWeatherAPI, time.Now().Add(-7*24*time.Hour))
			Expect(err).To(BeNil())
			Expect(deleted).To(Equal(int64(1)))

			records, err := s.Staging().ListByRun(context.TODO(), active.ID, model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
		})

		It("keeps rows inside the retention window", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			err = s.Staging().Append(context.TODO(), []model.StagedRecord{
				stagedRecord(run.ID, model.SourceWeatherAPI, "fresh"),
			})
			Expect(err).To(BeNil())

			deleted, err := s.Staging().DeleteOlderThan(context.TODO(), model.SourceWeatherAPI, time.Now().Add(-7*24*time.Hour))
			Expect(err).To(BeNil())
			Expect(deleted).To(Equal(int64(0)))
		})
	})
})
