package store

import (
	"context"
	"errors"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Run interface {
	Begin(ctx context.Context, pipelineName string, sourceType model.SourceType, startTime time.Time) (*model.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Run, error)
	List(ctx context.Context, filter *RunQueryFilter) (model.RunList, error)
	AddCounts(ctx context.Context, id uuid.UUID, delta model.RunCounts) error
	Complete(ctx context.Context, id uuid.UUID, status model.RunStatus, errorMessage *string, endTime time.Time) (*model.Run, error)
	StaleRunning(ctx context.Context, olderThan time.Duration) (model.RunList, error)
	InitialMigration() error
}

type RunStore struct {
	db *gorm.DB
}

// Make sure we conform to Run interface
var _ Run = (*RunStore)(nil)

func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Run{})
}

func (s *RunStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Begin creates the run row with status running. The partial unique index on
// (pipeline_name, source_type) where status = 'running' turns a second active
// run into a duplicate-key error, reported as ErrRunConflict.
func (s *RunStore) Begin(ctx context.Context, pipelineName string, sourceType model.SourceType, startTime time.Time) (*model.Run, error) {
	run := model.Run{
		ID:           uuid.New(),
		PipelineName: pipelineName,
		SourceType:   sourceType,
		Status:       model.RunStatusRunning,
		StartTime:    startTime,
	}

	if err := s.getDB(ctx).Create(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRunConflict
		}
		return nil, err
	}
	return &run, nil
}

func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	var run model.Run
	if err := s.getDB(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (s *RunStore) List(ctx context.Context, filter *RunQueryFilter) (model.RunList, error) {
	var runs model.RunList
	tx := s.getDB(ctx).Model(&model.Run{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if err := tx.Order("start_time DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// AddCounts applies the delta with atomic in-database increments so concurrent
// batches never lose updates to the shared counters.
func (s *RunStore) AddCounts(ctx context.Context, id uuid.UUID, delta model.RunCounts) error {
	updates := map[string]any{}
	if delta.Extracted != 0 {
		updates["records_extracted"] = gorm.Expr("records_extracted + ?", delta.Extracted)
	}
	if delta.Validated != 0 {
		updates["records_validated"] = gorm.Expr("records_validated + ?", delta.Validated)
	}
	if delta.Loaded != 0 {
		updates["records_loaded"] = gorm.Expr("records_loaded + ?", delta.Loaded)
	}
	if delta.Failed != 0 {
		updates["records_failed"] = gorm.Expr("records_failed + ?", delta.Failed)
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.getDB(ctx).Model(&model.Run{}).
		Where("id = ? AND status = ?", id, model.RunStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.failRunUpdate(ctx, id)
	}
	return nil
}

// Complete moves the run to a terminal status. Duration is derived here from
// the recorded start time, never supplied by the caller.
func (s *RunStore) Complete(ctx context.Context, id uuid.UUID, status model.RunStatus, errorMessage *string, endTime time.Time) (*model.Run, error) {
	if !status.Terminal() {
		return nil, errors.New("final status must be terminal")
	}

	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, ErrRunTerminal
	}
	if endTime.Before(run.StartTime) {
		return nil, ErrInvalidTimestamp
	}

	duration := endTime.Sub(run.StartTime).Seconds()
	updates := map[string]any{
		"status":           status,
		"end_time":         endTime,
		"duration_seconds": duration,
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := s.getDB(ctx).Model(&model.Run{}).
		Where("id = ? AND status = ?", id, model.RunStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// lost a race with another finalizer
		return nil, ErrRunTerminal
	}

	return s.Get(ctx, id)
}

// StaleRunning lists running rows older than the given age. A crash leaves an
// orphaned running row behind; reconciliation is external, we only surface them.
func (s *RunStore) StaleRunning(ctx context.Context, olderThan time.Duration) (model.RunList, error) {
	var runs model.RunList
	cutoff := time.Now().Add(-olderThan)
	err := s.getDB(ctx).
		Where("status = ? AND start_time < ?", model.RunStatusRunning, cutoff).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *RunStore) failRunUpdate(ctx context.Context, id uuid.UUID) error {
	run, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return ErrRunTerminal
	}
	return ErrRecordNotFound
}
