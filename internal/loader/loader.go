package loader

import (
	"context"
	"fmt"

	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
	"go.uber.org/zap"
)

// LoadingError wraps a per-record load failure. Store-unavailable class
// failures are transient; unresolvable key conflicts are permanent.
type LoadingError struct {
	error
	transient bool
}

func NewPermanentLoadingError(err error) *LoadingError {
	return &LoadingError{error: err, transient: false}
}

func NewTransientLoadingError(err error) *LoadingError {
	return &LoadingError{error: err, transient: true}
}

func (e *LoadingError) Transient() bool { return e.transient }
func (e *LoadingError) Unwrap() error   { return e.error }

// Summary counts what a load did. Skipped records were identical no-ops;
// callers fold them into records_loaded since the operation is idempotent,
// not insert-only.
type Summary struct {
	Loaded  int
	Skipped int
	Failed  int
}

// Failure is one record that could not be loaded, destined for the dead-letter path.
type Failure struct {
	Record model.ProductionRecord
	Err    error
}

type Loader struct {
	store     store.Store
	chunkSize int
}

func New(s store.Store, chunkSize int) *Loader {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Loader{store: s, chunkSize: chunkSize}
}

// Load upserts validated candidates in transactional chunks. A chunk either
// fully commits or fully rolls back; after a rollback every record in the
// chunk is retried in its own transaction so one poison record cannot take
// the rest of the chunk down with it. Load failures are never batch-fatal.
func (l *Loader) Load(ctx context.Context, records []model.ProductionRecord) (Summary, []Failure, error) {
	var summary Summary
	var failures []Failure

	for start := 0; start < len(records); start += l.chunkSize {
		if err := ctx.Err(); err != nil {
			return summary, failures, err
		}

		end := min(start+l.chunkSize, len(records))
		chunk := records[start:end]

		chunkSummary, err := l.loadChunk(ctx, chunk)
		if err == nil {
			summary.Loaded += chunkSummary.Loaded
			summary.Skipped += chunkSummary.Skipped
			continue
		}
		if ctx.Err() != nil {
			return summary, failures, ctx.Err()
		}

		zap.S().Named("loader").Warnw("chunk rolled back, retrying records individually",
			"chunk_start", start, "chunk_size", len(chunk), "error", err)

		for _, record := range chunk {
			if cerr := ctx.Err(); cerr != nil {
				return summary, failures, cerr
			}
			outcome, rerr := l.loadOne(ctx, record)
			if rerr != nil {
				summary.Failed++
				failures = append(failures, Failure{Record: record, Err: rerr})
				continue
			}
			if outcome == store.UpsertNoop {
				summary.Skipped++
			} else {
				summary.Loaded++
			}
		}
	}

	return summary, failures, nil
}

// loadChunk runs one chunk inside a single transaction.
func (l *Loader) loadChunk(ctx context.Context, chunk []model.ProductionRecord) (Summary, error) {
	var summary Summary

	txCtx, err := l.store.NewTransactionContext(ctx)
	if err != nil {
		return summary, NewTransientLoadingError(err)
	}

	for _, record := range chunk {
		if cerr := ctx.Err(); cerr != nil {
			_, _ = store.Rollback(txCtx)
			return summary, cerr
		}

		if record.NaturalKey() == "" {
			_, _ = store.Rollback(txCtx)
			return summary, NewPermanentLoadingError(fmt.Errorf("record for %s has an empty natural key", record.TableName()))
		}

		outcome, uerr := l.store.Production().Upsert(txCtx, record)
		if uerr != nil {
			_, _ = store.Rollback(txCtx)
			return summary, uerr
		}
		if outcome == store.UpsertNoop {
			summary.Skipped++
		} else {
			summary.Loaded++
		}
	}

	if _, err := store.Commit(txCtx); err != nil {
		return Summary{}, NewTransientLoadingError(err)
	}
	return summary, nil
}

// loadOne retries a single record in its own transaction. This is the finer
// granularity used to isolate a poison record after a chunk rollback.
func (l *Loader) loadOne(ctx context.Context, record model.ProductionRecord) (store.UpsertOutcome, error) {
	if record.NaturalKey() == "" {
		return store.UpsertNoop, NewPermanentLoadingError(fmt.Errorf("record for %s has an empty natural key", record.TableName()))
	}

	txCtx, err := l.store.NewTransactionContext(ctx)
	if err != nil {
		return store.UpsertNoop, NewTransientLoadingError(err)
	}

	outcome, err := l.store.Production().Upsert(txCtx, record)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return store.UpsertNoop, NewPermanentLoadingError(err)
	}

	if _, err := store.Commit(txCtx); err != nil {
		return store.UpsertNoop, NewTransientLoadingError(err)
	}
	return outcome, nil
}
