package model

import (
	"time"

	"github.com/google/uuid"
)

// RawRecord is the uniform envelope produced by every source extractor.
type RawRecord struct {
	SourceType  SourceType
	Payload     JSONMap
	ExtractedAt time.Time
}

// StagedRecord is a RawRecord persisted to a staging table, tagged with its run.
// Staged rows are immutable once written.
type StagedRecord struct {
	ID          uint       `gorm:"primaryKey"`
	RunID       uuid.UUID  `gorm:"not null;index"`
	SourceType  SourceType `gorm:"not null"`
	Payload     JSONMap    `gorm:"type:jsonb;not null"`
	ExtractedAt time.Time  `gorm:"not null"`
	StagedAt    time.Time  `gorm:"autoCreateTime"`
}

// StagingTable maps a source type to its staging table.
// One table per source keeps retention sweeps and audit queries narrow.
func StagingTable(t SourceType) string {
	switch t {
	case SourceWeatherAPI:
		return "stg_weather"
	case SourceCSVFile:
		return "stg_transactions"
	case SourceWebScrape:
		return "stg_web_content"
	case SourceExternalDB:
		return "stg_business"
	}
	return ""
}
