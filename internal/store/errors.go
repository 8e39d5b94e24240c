package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")

	// ErrRunConflict means a run for the same (pipeline_name, source_type)
	// pair is already running. Caller error, never retried.
	ErrRunConflict = errors.New("a run is already in progress for this pipeline and source")

	// ErrRunTerminal means the run already reached a terminal status.
	ErrRunTerminal = errors.New("run is already in a terminal state")

	// ErrInvalidTimestamp means a run's end time precedes its start time.
	ErrInvalidTimestamp = errors.New("end time precedes start time")
)
