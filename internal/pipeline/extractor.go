package pipeline

import (
	"context"
	"iter"

	"github.com/dataforge/ingest/internal/store/model"
)

// Extractor produces a finite, lazy stream of raw records for one source.
//
// The stream ends when the sequence returns normally; a mid-stream failure is
// signaled by yielding a non-nil error, after which the sequence stops. A
// stream is not restartable: a retry calls Extract again and consumes the new
// stream from the beginning.
type Extractor interface {
	SourceType() model.SourceType
	Extract(ctx context.Context) iter.Seq2[model.RawRecord, error]
}
