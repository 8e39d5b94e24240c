package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dataforge/ingest/internal/events"
	"github.com/dataforge/ingest/internal/loader"
	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
	"github.com/dataforge/ingest/internal/transform"
	"github.com/dataforge/ingest/pkg/metrics"
)

const (
	defaultPipelineName = "multi_source_ingestion"
	defaultMaxRetries   = 3
	defaultBaseDelay    = 500 * time.Millisecond
	defaultStagingBatch = 50
)

// Orchestrator drives the full lifecycle of a pipeline run for each source:
// extraction into staging, validation, loading into production and the final
// status resolution. Sources are processed independently; one source failing
// never interrupts the others.
type Orchestrator struct {
	store      store.Store
	stage      *transform.Stage
	loader     *loader.Loader
	extractors map[model.SourceType]Extractor
	producer   *events.EventProducer
	clock      Clock

	pipelineName         string
	maxRetries           int
	baseDelay            time.Duration
	warningsAffectStatus bool
	stagingBatch         int
}

func NewOrchestrator(s store.Store, stage *transform.Stage, ldr *loader.Loader, extractors []Extractor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:        s,
		stage:        stage,
		loader:       ldr,
		extractors:   make(map[model.SourceType]Extractor),
		clock:        NewClock(),
		pipelineName: defaultPipelineName,
		maxRetries:   defaultMaxRetries,
		baseDelay:    defaultBaseDelay,
		stagingBatch: defaultStagingBatch,
	}
	for _, ex := range extractors {
		o.extractors[ex.SourceType()] = ex
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the pipeline for the given sources concurrently and returns
// the first error encountered. All sources run to completion regardless.
func (o *Orchestrator) Execute(ctx context.Context, sources []model.SourceType) error {
	g := errgroup.Group{}
	for _, sourceType := range sources {
		g.Go(func() error {
			return o.RunSource(ctx, sourceType)
		})
	}
	return g.Wait()
}

// RunSource executes one complete run for a single source. The returned error
// reflects the run outcome: a run that ended failed returns the cause.
func (o *Orchestrator) RunSource(ctx context.Context, sourceType model.SourceType) error {
	logger := zap.S().Named("pipeline").With("source", sourceType)

	ex, found := o.extractors[sourceType]
	if !found {
		return fmt.Errorf("no extractor registered for source %q", sourceType)
	}

	run, err := o.store.Run().Begin(ctx, o.pipelineName, sourceType, o.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrRunConflict) {
			return errors.Wrapf(err, "source %q already has an active run", sourceType)
		}
		return errors.Wrap(err, "failed to begin run")
	}
	logger = logger.With("run_id", run.ID)
	logger.Info("run started")

	tally := runTally{}

	extracted, err := o.extract(ctx, run, ex)
	if err != nil {
		logger.Errorw("extraction failed", "error", err)
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return err
	}
	tally.extracted = extracted
	metrics.AddRecordsExtracted(string(sourceType), extracted)
	logger.Infow("extraction finished", "records", extracted)

	staged, err := o.store.Staging().ListByRun(ctx, run.ID, sourceType)
	if err != nil {
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return errors.Wrap(err, "failed to read staged records")
	}

	result, err := o.stage.Run(ctx, run.ID, sourceType, staged)
	if err != nil {
		logger.Errorw("validation failed", "error", err)
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return err
	}
	tally.validated = int64(len(result.Valid))
	tally.failed += int64(len(result.Rejections))
	tally.warnings = result.Warnings

	if err := o.recordValidation(ctx, run, sourceType, result); err != nil {
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return err
	}
	logger.Infow("validation finished", "valid", len(result.Valid), "rejected", len(result.Rejections), "warnings", result.Warnings)

	summary, failures, err := o.loader.Load(ctx, result.Valid)
	if err != nil {
		logger.Errorw("loading failed", "error", err)
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return err
	}
	tally.loaded = int64(summary.Loaded + summary.Skipped)
	tally.failed += int64(len(failures))

	if err := o.recordLoading(ctx, run, sourceType, summary, failures); err != nil {
		o.finalize(ctx, run, sourceType, model.RunStatusFailed, errorMessage(err), tally)
		return err
	}
	logger.Infow("loading finished", "loaded", summary.Loaded, "skipped", summary.Skipped, "failed", len(failures))

	status := o.resolveStatus(tally)
	o.finalize(ctx, run, sourceType, status, nil, tally)
	logger.Infow("run completed", "status", status)

	return nil
}

type runTally struct {
	extracted int64
	validated int64
	loaded    int64
	failed    int64
	warnings  int
}

// extract runs the extractor with retries, staging records as they arrive.
// Only a fully successful extraction counts: a failed attempt wipes its
// staged rows before the stream restarts.
func (o *Orchestrator) extract(ctx context.Context, run *model.Run, ex Extractor) (int64, error) {
	var deadLetter *model.ErrorRecord

	for attempt := 0; ; attempt++ {
		count, err := o.extractOnce(ctx, run, ex)
		if err == nil {
			if err := o.store.Run().AddCounts(ctx, run.ID, model.RunCounts{Extracted: count}); err != nil {
				return 0, errors.Wrap(err, "failed to record extracted count")
			}
			return count, nil
		}

		if deadLetter == nil {
			deadLetter = &model.ErrorRecord{
				RunID:      run.ID,
				SourceType: ex.SourceType(),
				ErrorType:  model.ErrorTypeExtraction,
				Message:    err.Error(),
			}
			if appendErr := o.store.ErrorLog().Append(ctx, deadLetter); appendErr != nil {
				zap.S().Named("pipeline").Errorw("failed to record extraction error", "error", appendErr)
			}
		}

		if !IsTransient(err) || attempt >= o.maxRetries {
			return 0, err
		}

		if incErr := o.store.ErrorLog().IncrementRetry(ctx, deadLetter.ID); incErr != nil {
			zap.S().Named("pipeline").Errorw("failed to increment retry count", "error", incErr)
		}
		if sleepErr := o.clock.Sleep(ctx, o.baseDelay<<attempt); sleepErr != nil {
			return 0, sleepErr
		}
		if delErr := o.store.Staging().DeleteByRun(ctx, run.ID, ex.SourceType()); delErr != nil {
			return 0, errors.Wrap(delErr, "failed to clear staged records before retry")
		}

		zap.S().Named("pipeline").Infow("retrying extraction", "source", ex.SourceType(), "attempt", attempt+1)
	}
}

func (o *Orchestrator) extractOnce(ctx context.Context, run *model.Run, ex Extractor) (int64, error) {
	batch := make([]model.StagedRecord, 0, o.stagingBatch)
	var total int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := o.store.Staging().Append(ctx, batch); err != nil {
			return NewTransientExtractionError(errors.Wrap(err, "failed to stage records"))
		}
		batch = batch[:0]
		return nil
	}

	for raw, err := range ex.Extract(ctx) {
		if err != nil {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch = append(batch, model.StagedRecord{
			RunID:       run.ID,
			SourceType:  raw.SourceType,
			Payload:     raw.Payload,
			ExtractedAt: raw.ExtractedAt,
		})
		total++
		if len(batch) >= o.stagingBatch {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return total, nil
}

func (o *Orchestrator) recordValidation(ctx context.Context, run *model.Run, sourceType model.SourceType, result *transform.Result) error {
	delta := model.RunCounts{
		Validated: int64(len(result.Valid)),
		Failed:    int64(len(result.Rejections)),
	}
	if err := o.store.Run().AddCounts(ctx, run.ID, delta); err != nil {
		return errors.Wrap(err, "failed to record validation counts")
	}

	if err := o.store.QualityCheck().Append(ctx, result.Checks); err != nil {
		return errors.Wrap(err, "failed to persist quality check results")
	}

	for _, rejection := range result.Rejections {
		record := &model.ErrorRecord{
			RunID:      run.ID,
			SourceType: sourceType,
			ErrorType:  model.ErrorTypeValidation,
			Message:    rejection.Err.Error(),
			Details:    string(rejection.Err.Reason),
			RawPayload: rejection.Record.Payload,
		}
		if err := o.store.ErrorLog().Append(ctx, record); err != nil {
			return errors.Wrap(err, "failed to record validation error")
		}
	}

	metrics.AddRecordsFailed(string(sourceType), int64(len(result.Rejections)))
	return nil
}

func (o *Orchestrator) recordLoading(ctx context.Context, run *model.Run, sourceType model.SourceType, summary loader.Summary, failures []loader.Failure) error {
	delta := model.RunCounts{
		Loaded: int64(summary.Loaded + summary.Skipped),
		Failed: int64(len(failures)),
	}
	if err := o.store.Run().AddCounts(ctx, run.ID, delta); err != nil {
		return errors.Wrap(err, "failed to record loading counts")
	}

	for _, failure := range failures {
		record := &model.ErrorRecord{
			RunID:      run.ID,
			SourceType: sourceType,
			ErrorType:  model.ErrorTypeLoading,
			Message:    failure.Err.Error(),
			Details:    failure.Record.NaturalKey(),
			RawPayload: payloadOf(failure.Record),
		}
		if err := o.store.ErrorLog().Append(ctx, record); err != nil {
			return errors.Wrap(err, "failed to record loading error")
		}
	}

	metrics.AddRecordsLoaded(string(sourceType), int64(summary.Loaded+summary.Skipped))
	metrics.AddRecordsFailed(string(sourceType), int64(len(failures)))
	return nil
}

func (o *Orchestrator) resolveStatus(tally runTally) model.RunStatus {
	switch {
	case tally.failed == 0:
		if tally.warnings > 0 && o.warningsAffectStatus {
			return model.RunStatusPartial
		}
		return model.RunStatusSuccess
	case tally.loaded > 0:
		return model.RunStatusPartial
	default:
		return model.RunStatusFailed
	}
}

// finalize moves the run to its terminal state. It must succeed even when the
// surrounding context is already canceled, so the bookkeeping runs on a
// detached context.
func (o *Orchestrator) finalize(ctx context.Context, run *model.Run, sourceType model.SourceType, status model.RunStatus, errMsg *string, tally runTally) {
	logger := zap.S().Named("pipeline").With("run_id", run.ID, "source", sourceType)

	fctx := context.WithoutCancel(ctx)
	completed, err := o.store.Run().Complete(fctx, run.ID, status, errMsg, o.clock.Now())
	if err != nil {
		logger.Errorw("failed to finalize run", "error", err)
		return
	}

	metrics.IncreaseRunsCompleted(string(sourceType), string(status))
	if completed.DurationSeconds != nil {
		metrics.ObserveRunDuration(string(sourceType), *completed.DurationSeconds)
	}

	o.emitRunEvents(fctx, completed)
}

func (o *Orchestrator) emitRunEvents(ctx context.Context, run *model.Run) {
	if o.producer == nil {
		return
	}
	logger := zap.S().Named("pipeline")

	completedAt := o.clock.Now()
	if run.EndTime != nil {
		completedAt = *run.EndTime
	}
	var duration float64
	if run.DurationSeconds != nil {
		duration = *run.DurationSeconds
	}

	event := events.RunCompletedEvent{
		RunID:            run.ID.String(),
		PipelineName:     run.PipelineName,
		SourceType:       string(run.SourceType),
		Status:           string(run.Status),
		RecordsExtracted: run.RecordsExtracted,
		RecordsValidated: run.RecordsValidated,
		RecordsLoaded:    run.RecordsLoaded,
		RecordsFailed:    run.RecordsFailed,
		DurationSeconds:  duration,
		CompletedAt:      completedAt,
	}
	if err := o.writeEvent(ctx, events.RunCompletedMessageKind, event); err != nil {
		logger.Errorw("failed to emit run completed event", "error", err)
	}

	if run.Status == model.RunStatusFailed {
		failure := events.RunFailureEvent{
			RunID:        run.ID.String(),
			PipelineName: run.PipelineName,
			SourceType:   string(run.SourceType),
		}
		if run.ErrorMessage != nil {
			failure.ErrorMessage = *run.ErrorMessage
		}
		if err := o.writeEvent(ctx, events.RunFailureMessageKind, failure); err != nil {
			logger.Errorw("failed to emit run failure event", "error", err)
		}
	}
}

func (o *Orchestrator) writeEvent(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return o.producer.Write(ctx, kind, bytes.NewReader(data))
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func payloadOf(record model.ProductionRecord) model.JSONMap {
	data, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	var m model.JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
