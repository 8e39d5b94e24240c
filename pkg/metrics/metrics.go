package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ingestSubsystem = "ingest"

	recordsExtractedTotal = "records_extracted_total"
	recordsLoadedTotal    = "records_loaded_total"
	recordsFailedTotal    = "records_failed_total"
	runsCompletedTotal    = "runs_completed_total"
	runDurationSeconds    = "run_duration_seconds"

	// Labels
	sourceLabel = "source"
	statusLabel = "status"
)

var recordCounterLabels = []string{
	sourceLabel,
}

var runCounterLabels = []string{
	sourceLabel,
	statusLabel,
}

/**
* Metrics definition
**/
var recordsExtractedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ingestSubsystem,
		Name:      recordsExtractedTotal,
		Help:      "number of records extracted from sources",
	},
	recordCounterLabels,
)

var recordsLoadedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ingestSubsystem,
		Name:      recordsLoadedTotal,
		Help:      "number of records loaded into production tables",
	},
	recordCounterLabels,
)

var recordsFailedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ingestSubsystem,
		Name:      recordsFailedTotal,
		Help:      "number of records routed to the dead-letter path",
	},
	recordCounterLabels,
)

var runsCompletedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ingestSubsystem,
		Name:      runsCompletedTotal,
		Help:      "number of completed pipeline runs by final status",
	},
	runCounterLabels,
)

var runDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: ingestSubsystem,
		Name:      runDurationSeconds,
		Help:      "pipeline run duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	},
	recordCounterLabels,
)

func AddRecordsExtracted(source string, n int64) {
	recordsExtractedTotalMetric.With(prometheus.Labels{sourceLabel: source}).Add(float64(n))
}

func AddRecordsLoaded(source string, n int64) {
	recordsLoadedTotalMetric.With(prometheus.Labels{sourceLabel: source}).Add(float64(n))
}

func AddRecordsFailed(source string, n int64) {
	recordsFailedTotalMetric.With(prometheus.Labels{sourceLabel: source}).Add(float64(n))
}

func IncreaseRunsCompleted(source, status string) {
	runsCompletedTotalMetric.With(prometheus.Labels{sourceLabel: source, statusLabel: status}).Inc()
}

func ObserveRunDuration(source string, seconds float64) {
	runDurationSecondsMetric.With(prometheus.Labels{sourceLabel: source}).Observe(seconds)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(recordsExtractedTotalMetric)
	prometheus.MustRegister(recordsLoadedTotalMetric)
	prometheus.MustRegister(recordsFailedTotalMetric)
	prometheus.MustRegister(runsCompletedTotalMetric)
	prometheus.MustRegister(runDurationSecondsMetric)
}
