package transform

import (
	"fmt"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
)

type transactionPayload struct {
	TransactionID *string  `json:"transaction_id" validate:"required"`
	Date          *string  `json:"date" validate:"required"`
	Product       *string  `json:"product" validate:"required"`
	Category      *string  `json:"category" validate:"required"`
	Amount        *float64 `json:"amount" validate:"required"`
	Quantity      *float64 `json:"quantity" validate:"required"`
	Region        *string  `json:"region" validate:"required"`
	SourceFile    string   `json:"source_file"`
	RowNumber     int      `json:"row_number"`
}

func (s *Stage) parseTransaction(record model.StagedRecord) (model.ProductionRecord, *ValidationError) {
	var payload transactionPayload
	if verr := s.decodePayload(record.Payload, &payload); verr != nil {
		return nil, verr
	}

	date, err := time.Parse("2006-01-02", *payload.Date)
	if err != nil {
		return nil, &ValidationError{
			Reason: ReasonTypeMismatch,
			Field:  "date",
			Detail: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *payload.Date),
		}
	}

	quantity := *payload.Quantity
	if quantity != float64(int(quantity)) {
		return nil, &ValidationError{
			Reason: ReasonTypeMismatch,
			Field:  "quantity",
			Detail: fmt.Sprintf("quantity %v is not an integer", quantity),
		}
	}

	return &model.Transaction{
		TransactionID: *payload.TransactionID,
		Date:          date,
		Product:       *payload.Product,
		Category:      *payload.Category,
		Region:        *payload.Region,
		Amount:        round2(*payload.Amount),
		Quantity:      int(quantity),
		SourceFile:    payload.SourceFile,
		RowNumber:     payload.RowNumber,
		RunID:         record.RunID,
	}, nil
}
