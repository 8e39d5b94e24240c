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

var _ = Describe("report store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM pipeline_runs;")
	})

	metric := func(city string, recordedAt time.Time, temperature float64) *model.WeatherMetric {
		return &model.WeatherMetric{
			City:             city,
			Country:          "UK",
			RecordedAt:       recordedAt,
			Temperature:      temperature,
			FeelsLike:        temperature,
			Humidity:         60,
			Pressure:         1010,
			WeatherCondition: "clear",
			WindSpeed:        5,
			RunID:            uuid.New(),
		}
	}

	Context("latest weather", func() {
		It("returns one row per city, the most recent one", func() {
			now := time.Now().Truncate(time.Second)

			_, err := s.Production().Upsert(context.TODO(), metric("LONDON", now.Add(-2*time.Hour), 15))
			Expect(err).To(BeNil())
			_, err = s.Production().Upsert(context.TODO(), metric("LONDON", now, 18))
			Expect(err).To(BeNil())
			_, err = s.Production().Upsert(context.TODO(), metric("PARIS", now.Add(-time.Hour), 22))
			Expect(err).To(BeNil())

			latest, err := s.Report().LatestWeather(context.TODO())
			Expect(err).To(BeNil())
			Expect(latest).To(HaveLen(2))
			Expect(latest[0].City).To(Equal("LONDON"))
			Expect(latest[0].Temperature).To(Equal(18.0))
			Expect(latest[1].City).To(Equal("PARIS"))
		})
	})

	Context("run summary", func() {
		It("aggregates runs by source and status", func() {
			run1, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now().Add(-time.Hour))
			Expect(err).To(BeNil())
			Expect(s.Run().AddCounts(context.TODO(), run1.ID, model.RunCounts{Extracted: 10, Loaded: 9, Failed: 1})).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), run1.ID, model.RunStatusPartial, nil, time.Now())
			Expect(err).To(BeNil())

			run2, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now().Add(-30*time.Minute))
			Expect(err).To(BeNil())
			Expect(s.Run().AddCounts(context.TODO(), run2.ID, model.RunCounts{Extracted: 5, Loaded: 5})).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), run2.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			rows, err := s.Report().RunSummary(context.TODO(), time.Now().Add(-24*time.Hour))
			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(2))

			for _, row := range rows {
				switch row.Status {
				case model.RunStatusPartial:
					Expect(row.Runs).To(Equal(int64(1)))
					Expect(row.RecordsExtracted).To(Equal(int64(10)))
					Expect(row.RecordsFailed).To(Equal(int64(1)))
				case model.RunStatusSuccess:
					Expect(row.Runs).To(Equal(int64(1)))
					Expect(row.RecordsLoaded).To(Equal(int64(5)))
				}
			}
		})

		It("excludes runs before the window", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now().Add(-72*time.Hour))
			Expect(err).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			rows, err := s.Report().RunSummary(context.TODO(), time.Now().Add(-24*time.Hour))
			Expect(err).To(BeNil())
			Expect(rows).To(BeEmpty())
		})
	})
})
