package quality

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/google/uuid"
)

// KeyChecker reports whether a value already exists for the column in the
// source's production table. Wired to the store by the orchestrator.
type KeyChecker func(ctx context.Context, sourceType model.SourceType, column string, value any) (bool, error)

// Violation is one check failing for one record.
type Violation struct {
	Spec   Spec
	Detail string
}

func (v Violation) Blocking() bool { return v.Spec.Severity == SeverityFailed }

func (v Violation) String() string {
	return fmt.Sprintf("%s on %s: %s", v.Spec.Type, v.Spec.Column, v.Detail)
}

type Engine struct {
	keyExists KeyChecker
}

type EngineOption func(*Engine)

func WithKeyChecker(fn KeyChecker) EngineOption {
	return func(e *Engine) { e.keyExists = fn }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewBatch starts a check pass over one batch of records. The batch carries
// the per-check tallies and the keys seen so far for uniqueness checks.
func (e *Engine) NewBatch(suite Suite) *Batch {
	return &Batch{
		engine:  e,
		suite:   suite,
		seen:    make(map[string]map[string]bool),
		tallies: make([]tally, len(suite.Checks)),
	}
}

type tally struct {
	checked int64
	passed  int64
	failed  int64
}

type Batch struct {
	engine  *Engine
	suite   Suite
	seen    map[string]map[string]bool
	tallies []tally
}

// Check evaluates every configured check against one record's payload.
// Checks run independently; all violations are returned, not just the first.
func (b *Batch) Check(ctx context.Context, payload map[string]any) ([]Violation, error) {
	var violations []Violation

	for i, spec := range b.suite.Checks {
		b.tallies[i].checked++

		detail, soft, err := b.evaluate(ctx, spec, payload)
		if err != nil {
			return nil, err
		}
		if detail == "" {
			b.tallies[i].passed++
			continue
		}
		b.tallies[i].failed++

		violation := Violation{Spec: spec, Detail: detail}
		if soft {
			// rows already in the target table are resolved by the loader's
			// upsert, so they never block the record
			violation.Spec.Severity = SeverityWarning
		}
		violations = append(violations, violation)
	}
	return violations, nil
}

// evaluate returns an empty string on pass, or the failure detail. The soft
// flag marks a violation that must not block the record.
func (b *Batch) evaluate(ctx context.Context, spec Spec, payload map[string]any) (string, bool, error) {
	value, present := payload[spec.Column]
	if !present {
		// a check against a column the record does not carry fails, it is not skipped
		return "column absent from record", false, nil
	}

	switch spec.Type {
	case NullCheck:
		if value == nil || fmt.Sprint(value) == "" {
			return "value is null or empty", false, nil
		}
	case TypeCheck:
		if !parsesAs(value, spec.DataType) {
			return fmt.Sprintf("value %v does not parse as %s", value, spec.DataType), false, nil
		}
	case RangeCheck:
		num, ok := asFloat(value)
		if !ok {
			return fmt.Sprintf("value %v is not numeric", value), false, nil
		}
		if spec.Min != nil && num < *spec.Min {
			return fmt.Sprintf("value %v below minimum %v", num, *spec.Min), false, nil
		}
		if spec.Max != nil && num > *spec.Max {
			return fmt.Sprintf("value %v above maximum %v", num, *spec.Max), false, nil
		}
	case UniquenessCheck:
		key := fmt.Sprint(value)
		if b.seen[spec.Column] == nil {
			b.seen[spec.Column] = make(map[string]bool)
		}
		if b.seen[spec.Column][key] {
			return fmt.Sprintf("duplicate value %s within batch", key), false, nil
		}
		b.seen[spec.Column][key] = true

		if b.engine.keyExists != nil {
			exists, err := b.engine.keyExists(ctx, b.suite.Source, spec.Column, value)
			if err != nil {
				return "", false, err
			}
			if exists {
				return fmt.Sprintf("value %s already present in %s", key, b.suite.TargetTable), true, nil
			}
		}
	}
	return "", false, nil
}

// Results aggregates the pass into one summary row per configured check.
func (b *Batch) Results(runID uuid.UUID) []model.QualityCheck {
	results := make([]model.QualityCheck, 0, len(b.suite.Checks))
	for i, spec := range b.suite.Checks {
		t := b.tallies[i]

		status := model.CheckStatusPassed
		if t.failed > 0 {
			status = model.CheckStatusFailed
			if spec.Severity == SeverityWarning {
				status = model.CheckStatusWarning
			}
		}

		details := ""
		if t.failed > 0 {
			details = fmt.Sprintf("%d of %d records failed %s on %s", t.failed, t.checked, spec.Type, spec.Column)
		}

		results = append(results, model.QualityCheck{
			RunID:          runID,
			SourceType:     b.suite.Source,
			CheckType:      string(spec.Type),
			TargetTable:    b.suite.TargetTable,
			TargetColumn:   spec.Column,
			Status:         status,
			RecordsChecked: t.checked,
			RecordsPassed:  t.passed,
			RecordsFailed:  t.failed,
			Details:        details,
		})
	}
	return results
}

// Warnings reports how many warning-severity checks recorded at least one failure.
func (b *Batch) Warnings() int {
	count := 0
	for i, spec := range b.suite.Checks {
		if spec.Severity == SeverityWarning && b.tallies[i].failed > 0 {
			count++
		}
	}
	return count
}

func parsesAs(value any, dataType DataType) bool {
	switch dataType {
	case TypeNumber:
		_, ok := asFloat(value)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		case string:
			_, err := strconv.ParseInt(v, 10, 64)
			return err == nil
		}
		return false
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			_, isTime := value.(time.Time)
			return isTime
		}
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return true
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	case TypeString:
		_, ok := value.(string)
		return ok
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
