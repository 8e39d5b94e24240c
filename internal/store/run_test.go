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

var _ = Describe("run store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM pipeline_runs;")
	})

	Context("begin", func() {
		It("creates a running run", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())
			Expect(run.Status).To(Equal(model.RunStatusRunning))
			Expect(run.ID).NotTo(Equal(uuid.Nil))
		})

		It("rejects a second active run for the same source", func() {
			_, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(MatchError(store.ErrRunConflict))
		})

		It("allows concurrent runs for different sources", func() {
			_, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now())
			Expect(err).To(BeNil())
		})

		It("allows a new run once the previous one is terminal", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())
		})
	})

	Context("counters", func() {
		It("applies deltas as increments", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now())
			Expect(err).To(BeNil())

			err = s.Run().AddCounts(context.TODO(), run.ID, model.RunCounts{Extracted: 10})
			Expect(err).To(BeNil())
			err = s.Run().AddCounts(context.TODO(), run.ID, model.RunCounts{Validated: 8, Failed: 2})
			Expect(err).To(BeNil())
			err = s.Run().AddCounts(context.TODO(), run.ID, model.RunCounts{Loaded: 8})
			Expect(err).To(BeNil())

			got, err := s.Run().Get(context.TODO(), run.ID)
			Expect(err).To(BeNil())
			Expect(got.RecordsExtracted).To(Equal(int64(10)))
			Expect(got.RecordsValidated).To(Equal(int64(8)))
			Expect(got.RecordsLoaded).To(Equal(int64(8)))
			Expect(got.RecordsFailed).To(Equal(int64(2)))
		})

		It("rejects counter updates on a terminal run", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			err = s.Run().AddCounts(context.TODO(), run.ID, model.RunCounts{Extracted: 1})
			Expect(err).To(MatchError(store.ErrRunTerminal))
		})

		It("reports a missing run", func() {
			err := s.Run().AddCounts(context.TODO(), uuid.New(), model.RunCounts{Extracted: 1})
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("complete", func() {
		It("derives the duration from the recorded start time", func() {
			start := time.Now().Add(-90 * time.Second)
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWebScrape, start)
			Expect(err).To(BeNil())

			end := start.Add(90 * time.Second)
			completed, err := s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, end)
			Expect(err).To(BeNil())
			Expect(completed.EndTime).NotTo(BeNil())
			Expect(completed.DurationSeconds).NotTo(BeNil())
			Expect(*completed.DurationSeconds).To(BeNumerically("~", 90.0, 0.5))
		})

		It("stores the error message on failure", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWebScrape, time.Now())
			Expect(err).To(BeNil())

			msg := "extraction failed"
			completed, err := s.Run().Complete(context.TODO(), run.ID, model.RunStatusFailed, &msg, time.Now())
			Expect(err).To(BeNil())
			Expect(completed.ErrorMessage).NotTo(BeNil())
			Expect(*completed.ErrorMessage).To(Equal(msg))
		})

		It("rejects an end time before the start time", func() {
			start := time.Now()
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWebScrape, start)
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, start.Add(-time.Minute))
			Expect(err).To(MatchError(store.ErrInvalidTimestamp))
		})

		It("rejects completing a terminal run twice", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWebScrape, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusFailed, nil, time.Now())
			Expect(err).To(MatchError(store.ErrRunTerminal))
		})

		It("rejects a non-terminal final status", func() {
			run, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWebScrape, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Complete(context.TODO(), run.ID, model.RunStatusRunning, nil, time.Now())
			Expect(err).NotTo(BeNil())
		})
	})

	Context("list", func() {
		It("filters by source type and status", func() {
			run1, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now())
			Expect(err).To(BeNil())
			_, err = s.Run().Complete(context.TODO(), run1.ID, model.RunStatusSuccess, nil, time.Now())
			Expect(err).To(BeNil())

			_, err = s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now())
			Expect(err).To(BeNil())

			runs, err := s.Run().List(context.TODO(), store.NewRunQueryFilter().BySourceType(model.SourceWeatherAPI))
			Expect(err).To(BeNil())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].SourceType).To(Equal(model.SourceWeatherAPI))

			runs, err = s.Run().List(context.TODO(), store.NewRunQueryFilter().ByStatus(model.RunStatusRunning))
			Expect(err).To(BeNil())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].SourceType).To(Equal(model.SourceCSVFile))
		})

		It("limits the result set", func() {
			for _, src := range model.SourceTypes() {
				_, err := s.Run().Begin(context.TODO(), "pipeline", src, time.Now())
				Expect(err).To(BeNil())
			}

			runs, err := s.Run().List(context.TODO(), store.NewRunQueryFilter().Limit(2))
			Expect(err).To(BeNil())
			Expect(runs).To(HaveLen(2))
		})
	})

	Context("stale running", func() {
		It("surfaces only old running rows", func() {
			_, err := s.Run().Begin(context.TODO(), "pipeline", model.SourceWeatherAPI, time.Now().Add(-48*time.Hour))
			Expect(err).To(BeNil())
			_, err = s.Run().Begin(context.TODO(), "pipeline", model.SourceCSVFile, time.Now())
			Expect(err).To(BeNil())

			stale, err := s.Run().StaleRunning(context.TODO(), 24*time.Hour)
			Expect(err).To(BeNil())
			Expect(stale).To(HaveLen(1))
			Expect(stale[0].SourceType).To(Equal(model.SourceWeatherAPI))
		})
	})
})
