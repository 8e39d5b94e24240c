package events

import "time"

// RunCompletedEvent is emitted when a pipeline run reaches a terminal state.
type RunCompletedEvent struct {
	RunID            string    `json:"run_id"`
	PipelineName     string    `json:"pipeline_name"`
	SourceType       string    `json:"source_type"`
	Status           string    `json:"status"`
	RecordsExtracted int64     `json:"records_extracted"`
	RecordsValidated int64     `json:"records_validated"`
	RecordsLoaded    int64     `json:"records_loaded"`
	RecordsFailed    int64     `json:"records_failed"`
	DurationSeconds  float64   `json:"duration_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// RunFailureEvent is emitted when a run ends failed and carries the last error seen.
type RunFailureEvent struct {
	RunID        string `json:"run_id"`
	PipelineName string `json:"pipeline_name"`
	SourceType   string `json:"source_type"`
	ErrorMessage string `json:"error_message"`
}
