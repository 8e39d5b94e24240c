package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dataforge/ingest/internal/quality"
	"github.com/dataforge/ingest/internal/store/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Reason string

const (
	ReasonMissingField   Reason = "missing_field"
	ReasonTypeMismatch   Reason = "type_mismatch"
	ReasonRangeViolation Reason = "range_violation"
	ReasonUniqueness     Reason = "uniqueness_violation"
	ReasonMalformed      Reason = "malformed_payload"
)

// ValidationError is always permanent: the record is data-caused broken and
// retrying would not change the outcome.
type ValidationError struct {
	Reason Reason
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s) on field %q: %s", e.Reason, e.Field, e.Detail)
}

func reasonForCheck(t quality.CheckType) Reason {
	switch t {
	case quality.NullCheck:
		return ReasonMissingField
	case quality.TypeCheck:
		return ReasonTypeMismatch
	case quality.RangeCheck:
		return ReasonRangeViolation
	case quality.UniquenessCheck:
		return ReasonUniqueness
	}
	return ReasonMalformed
}

// Rejection is a staged record excluded from loading, tagged with the
// originating failure for the dead-letter path.
type Rejection struct {
	Record model.StagedRecord
	Err    *ValidationError
}

// Result is the outcome of validating one staged batch.
type Result struct {
	Valid      []model.ProductionRecord
	Rejections []Rejection
	Checks     []model.QualityCheck
	Warnings   int
}

// Stage converts staged raw records into typed production candidates,
// running the quality checks inline and rejecting non-conforming records.
type Stage struct {
	validate *validator.Validate
	engine   *quality.Engine
	suites   map[model.SourceType]quality.Suite
}

func NewStage(engine *quality.Engine, suites map[model.SourceType]quality.Suite) *Stage {
	return &Stage{
		validate: validator.New(),
		engine:   engine,
		suites:   suites,
	}
}

// Run validates one batch. Quality-check verdicts are collected per record and
// aggregated into batch-level summary rows at the end of the pass.
func (s *Stage) Run(ctx context.Context, runID uuid.UUID, sourceType model.SourceType, staged []model.StagedRecord) (*Result, error) {
	suite := s.suites[sourceType]
	if suite.Source == "" {
		suite = quality.Suite{Source: sourceType, TargetTable: targetTable(sourceType)}
	}
	batch := s.engine.NewBatch(suite)

	result := &Result{}
	for _, record := range staged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		violations, err := batch.Check(ctx, record.Payload)
		if err != nil {
			return nil, err
		}
		if blocking := firstBlocking(violations); blocking != nil {
			result.Rejections = append(result.Rejections, Rejection{
				Record: record,
				Err: &ValidationError{
					Reason: reasonForCheck(blocking.Spec.Type),
					Field:  blocking.Spec.Column,
					Detail: blocking.Detail,
				},
			})
			continue
		}

		candidate, verr := s.parse(sourceType, record)
		if verr != nil {
			result.Rejections = append(result.Rejections, Rejection{Record: record, Err: verr})
			continue
		}
		result.Valid = append(result.Valid, candidate)
	}

	result.Checks = batch.Results(runID)
	result.Warnings = batch.Warnings()
	return result, nil
}

func (s *Stage) parse(sourceType model.SourceType, record model.StagedRecord) (model.ProductionRecord, *ValidationError) {
	switch sourceType {
	case model.SourceWeatherAPI:
		return s.parseWeather(record)
	case model.SourceCSVFile:
		return s.parseTransaction(record)
	case model.SourceWebScrape:
		return s.parseWebContent(record)
	case model.SourceExternalDB:
		return s.parseBusiness(record)
	}
	return nil, &ValidationError{Reason: ReasonMalformed, Detail: fmt.Sprintf("unknown source type %q", sourceType)}
}

func targetTable(t model.SourceType) string {
	switch t {
	case model.SourceWeatherAPI:
		return model.WeatherMetric{}.TableName()
	case model.SourceCSVFile:
		return model.Transaction{}.TableName()
	case model.SourceWebScrape:
		return model.WebContent{}.TableName()
	case model.SourceExternalDB:
		return model.BusinessRecord{}.TableName()
	}
	return ""
}

func firstBlocking(violations []quality.Violation) *quality.Violation {
	for i := range violations {
		if violations[i].Blocking() {
			return &violations[i]
		}
	}
	return nil
}

// decodePayload maps the opaque payload onto the source's typed schema.
func (s *Stage) decodePayload(payload model.JSONMap, target any) *ValidationError {
	data, err := json.Marshal(payload)
	if err != nil {
		return &ValidationError{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &ValidationError{Reason: ReasonTypeMismatch, Detail: err.Error()}
	}

	if err := s.validate.Struct(target); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return &ValidationError{
				Reason: ReasonMissingField,
				Field:  fe.Field(),
				Detail: fmt.Sprintf("required field failed %q rule", fe.Tag()),
			}
		}
		return &ValidationError{Reason: ReasonMalformed, Detail: err.Error()}
	}
	return nil
}

// round2 applies the declared 2-decimal precision for currency and
// temperature fields. Values beyond the precision are rounded, not rejected.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
