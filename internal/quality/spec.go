package quality

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dataforge/ingest/internal/store/model"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"
)

type CheckType string

const (
	NullCheck       CheckType = "null_check"
	TypeCheck       CheckType = "type_check"
	RangeCheck      CheckType = "range_check"
	UniquenessCheck CheckType = "uniqueness_check"
)

type Severity string

const (
	SeverityFailed  Severity = "failed"
	SeverityWarning Severity = "warning"
)

type DataType string

const (
	TypeNumber  DataType = "number"
	TypeInteger DataType = "integer"
	TypeString  DataType = "string"
	TypeDate    DataType = "date"
)

// Spec is one configured check against one column.
type Spec struct {
	Type     CheckType `json:"type"`
	Column   string    `json:"column"`
	Severity Severity  `json:"severity"`
	DataType DataType  `json:"data_type,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// Suite is the set of checks configured for one source type.
type Suite struct {
	Source      model.SourceType `json:"source"`
	TargetTable string           `json:"target_table"`
	Checks      []Spec           `json:"checks"`
}

func (s Suite) Validate() error {
	if model.StagingTable(s.Source) == "" {
		return fmt.Errorf("unknown source type %q", s.Source)
	}
	if s.TargetTable == "" {
		return fmt.Errorf("suite for %s is missing target_table", s.Source)
	}
	for _, check := range s.Checks {
		if !funk.Contains([]CheckType{NullCheck, TypeCheck, RangeCheck, UniquenessCheck}, check.Type) {
			return fmt.Errorf("unknown check type %q on column %s", check.Type, check.Column)
		}
		if check.Column == "" {
			return fmt.Errorf("%s check is missing a column", check.Type)
		}
		if check.Severity != SeverityFailed && check.Severity != SeverityWarning {
			return fmt.Errorf("%s check on %s has invalid severity %q", check.Type, check.Column, check.Severity)
		}
		if check.Type == RangeCheck && check.Min == nil && check.Max == nil {
			return fmt.Errorf("range check on %s needs min or max", check.Column)
		}
	}
	return nil
}

// LoadSuites reads every *.yaml suite from the folder, keyed by source type.
func LoadSuites(folder string) (map[model.SourceType]Suite, error) {
	entries, err := filepath.Glob(filepath.Join(folder, "*.yaml"))
	if err != nil {
		return nil, err
	}

	suites := make(map[model.SourceType]Suite, len(entries))
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var suite Suite
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := suite.Validate(); err != nil {
			return nil, fmt.Errorf("invalid suite %s: %w", path, err)
		}
		suites[suite.Source] = suite
	}
	return suites, nil
}
