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

var _ = Describe("production store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM weather_metrics;")
		gormdb.Exec("DELETE FROM transactions;")
	})

	newMetric := func(runID uuid.UUID, recordedAt time.Time) *model.WeatherMetric {
		return &model.WeatherMetric{
			City:             "LONDON",
			Country:          "UK",
			RecordedAt:       recordedAt,
			Temperature:      18.5,
			FeelsLike:        17.9,
			Humidity:         64,
			Pressure:         1013,
			WeatherCondition: "cloudy",
			WindSpeed:        12.3,
			RunID:            runID,
		}
	}

	Context("upsert", func() {
		It("inserts a new record", func() {
			outcome, err := s.Production().Upsert(context.TODO(), newMetric(uuid.New(), time.Now()))
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertInserted))

			count, err := s.Production().Count(context.TODO(), model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})

		It("is a no-op when the identical record is loaded again", func() {
			runID := uuid.New()
			recordedAt := time.Now().Truncate(time.Second)

			outcome, err := s.Production().Upsert(context.TODO(), newMetric(runID, recordedAt))
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertInserted))

			outcome, err = s.Production().Upsert(context.TODO(), newMetric(uuid.New(), recordedAt))
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertNoop))

			count, err := s.Production().Count(context.TODO(), model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})

		It("updates in place when the content changed", func() {
			recordedAt := time.Now().Truncate(time.Second)

			_, err := s.Production().Upsert(context.TODO(), newMetric(uuid.New(), recordedAt))
			Expect(err).To(BeNil())

			changed := newMetric(uuid.New(), recordedAt)
			changed.Temperature = 21.0
			outcome, err := s.Production().Upsert(context.TODO(), changed)
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertUpdated))

			count, err := s.Production().Count(context.TODO(), model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))

			var temperature float64
			err = gormdb.Raw("SELECT temperature FROM weather_metrics;").Scan(&temperature).Error
			Expect(err).To(BeNil())
			Expect(temperature).To(Equal(21.0))
		})

		It("upserts transactions by transaction id", func() {
			txn := &model.Transaction{
				TransactionID: "txn-001",
				Date:          time.Now().Truncate(24 * time.Hour),
				Product:       "widget",
				Category:      "hardware",
				Region:        "emea",
				Amount:        19.99,
				Quantity:      3,
				RunID:         uuid.New(),
			}
			outcome, err := s.Production().Upsert(context.TODO(), txn)
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertInserted))

			updated := *txn
			updated.Amount = 24.99
			outcome, err = s.Production().Upsert(context.TODO(), &updated)
			Expect(err).To(BeNil())
			Expect(outcome).To(Equal(store.UpsertUpdated))

			count, err := s.Production().Count(context.TODO(), model.SourceCSVFile)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Context("exists", func() {
		It("reports whether a column value is present", func() {
			_, err := s.Production().Upsert(context.TODO(), &model.Transaction{
				TransactionID: "txn-exists",
				Date:          time.Now(),
				Product:       "widget",
				Category:      "hardware",
				Region:        "emea",
				Amount:        10,
				Quantity:      1,
				RunID:         uuid.New(),
			})
			Expect(err).To(BeNil())

			exists, err := s.Production().ExistsColumnValue(context.TODO(), model.SourceCSVFile, "transaction_id", "txn-exists")
			Expect(err).To(BeNil())
			Expect(exists).To(BeTrue())

			exists, err = s.Production().ExistsColumnValue(context.TODO(), model.SourceCSVFile, "transaction_id", "txn-missing")
			Expect(err).To(BeNil())
			Expect(exists).To(BeFalse())
		})
	})

	Context("transaction context", func() {
		It("rolls back an upsert with the surrounding transaction", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Production().Upsert(ctx, newMetric(uuid.New(), time.Now()))
			Expect(err).To(BeNil())

			_, rerr := store.Rollback(ctx)
			Expect(rerr).To(BeNil())

			count, err := s.Production().Count(context.TODO(), model.SourceWeatherAPI)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(0)))
		})
	})
})
