package transform

import (
	"fmt"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
)

type businessPayload struct {
	BusinessID    *string  `json:"business_id" validate:"required"`
	Name          *string  `json:"name" validate:"required"`
	Category      *string  `json:"category" validate:"required"`
	Region        *string  `json:"region" validate:"required"`
	Revenue       *float64 `json:"revenue" validate:"required"`
	EmployeeCount *float64 `json:"employee_count"`
	RegisteredAt  *string  `json:"registered_at" validate:"required"`
}

func (s *Stage) parseBusiness(record model.StagedRecord) (model.ProductionRecord, *ValidationError) {
	var payload businessPayload
	if verr := s.decodePayload(record.Payload, &payload); verr != nil {
		return nil, verr
	}

	registered, err := parseFlexibleTime(*payload.RegisteredAt)
	if err != nil {
		return nil, &ValidationError{
			Reason: ReasonTypeMismatch,
			Field:  "registered_at",
			Detail: fmt.Sprintf("invalid timestamp %q", *payload.RegisteredAt),
		}
	}

	employees := 0
	if payload.EmployeeCount != nil {
		employees = int(*payload.EmployeeCount)
	}

	return &model.BusinessRecord{
		BusinessID:    *payload.BusinessID,
		Name:          *payload.Name,
		Category:      *payload.Category,
		Region:        *payload.Region,
		Revenue:       round2(*payload.Revenue),
		EmployeeCount: employees,
		RegisteredAt:  registered,
		RunID:         record.RunID,
	}, nil
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
