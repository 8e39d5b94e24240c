package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SourceType string

const (
	SourceWeatherAPI SourceType = "weather_api"
	SourceCSVFile    SourceType = "csv_file"
	SourceWebScrape  SourceType = "web_scrape"
	SourceExternalDB SourceType = "external_db"
)

func SourceTypes() []SourceType {
	return []SourceType{SourceWeatherAPI, SourceCSVFile, SourceWebScrape, SourceExternalDB}
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusPartial RunStatus = "partial"
)

// Terminal reports whether the status is final. Terminal runs are immutable.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusPartial
}

type Run struct {
	gorm.Model
	ID               uuid.UUID  `gorm:"primaryKey"`
	PipelineName     string     `gorm:"not null;index:idx_active_run,unique,where:status = 'running'"`
	SourceType       SourceType `gorm:"not null;index:idx_active_run,unique,where:status = 'running'"`
	Status           RunStatus  `gorm:"not null;index"`
	RecordsExtracted int64      `gorm:"not null;default:0"`
	RecordsValidated int64      `gorm:"not null;default:0"`
	RecordsLoaded    int64      `gorm:"not null;default:0;check:chk_run_counts,records_loaded + records_failed <= records_extracted"`
	RecordsFailed    int64      `gorm:"not null;default:0"`
	StartTime        time.Time  `gorm:"not null"`
	EndTime          *time.Time
	DurationSeconds  *float64
	ErrorMessage     *string
}

func (Run) TableName() string { return "pipeline_runs" }

type RunList []Run

func (r Run) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}

// RunCounts is an additive delta applied to a run's counters.
type RunCounts struct {
	Extracted int64
	Validated int64
	Loaded    int64
	Failed    int64
}
