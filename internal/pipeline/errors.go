package pipeline

import (
	"errors"
)

// ExtractionError wraps a failure surfaced by a source extractor. Network and
// IO class failures are transient and follow the retry policy; malformed
// source data is permanent.
type ExtractionError struct {
	error
	transient bool
}

func NewTransientExtractionError(err error) *ExtractionError {
	return &ExtractionError{error: err, transient: true}
}

func NewPermanentExtractionError(err error) *ExtractionError {
	return &ExtractionError{error: err, transient: false}
}

func (e *ExtractionError) Transient() bool { return e.transient }
func (e *ExtractionError) Unwrap() error   { return e.error }

type transientError interface {
	Transient() bool
}

// IsTransient reports whether the error is environment-caused and worth
// retrying. Anything that does not declare itself transient is permanent.
func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t) && t.Transient()
}
