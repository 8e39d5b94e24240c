package model

import (
	"time"

	"github.com/google/uuid"
)

type ErrorType string

const (
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeLoading    ErrorType = "loading"
)

// ErrorRecord is the dead-letter row for a record or batch that failed.
// Resolved is flipped by external remediation tooling, never by the pipeline.
type ErrorRecord struct {
	ID         uint       `gorm:"primaryKey"`
	RunID      uuid.UUID  `gorm:"not null;index"`
	SourceType SourceType `gorm:"not null"`
	ErrorType  ErrorType  `gorm:"not null"`
	Message    string     `gorm:"not null"`
	Details    string
	RawPayload JSONMap   `gorm:"type:jsonb"`
	RetryCount int       `gorm:"not null;default:0"`
	Resolved   bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

func (ErrorRecord) TableName() string { return "error_log" }

type ErrorRecordList []ErrorRecord
