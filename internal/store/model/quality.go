package model

import (
	"time"

	"github.com/google/uuid"
)

type CheckStatus string

const (
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
	CheckStatusWarning CheckStatus = "warning"
)

// QualityCheck is one summary row per check execution. Append-only.
type QualityCheck struct {
	ID             uint        `gorm:"primaryKey"`
	RunID          uuid.UUID   `gorm:"not null;index"`
	SourceType     SourceType  `gorm:"not null"`
	CheckType      string      `gorm:"not null"`
	TargetTable    string      `gorm:"not null"`
	TargetColumn   string      `gorm:"not null"`
	Status         CheckStatus `gorm:"not null"`
	RecordsChecked int64       `gorm:"not null;default:0"`
	RecordsPassed  int64       `gorm:"not null;default:0"`
	RecordsFailed  int64       `gorm:"not null;default:0"`
	Details        string
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (QualityCheck) TableName() string { return "quality_checks" }

type QualityCheckList []QualityCheck
