package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/dataforge/ingest/internal/store/model"
)

type webPayload struct {
	SourceURL     *string `json:"source_url" validate:"required,url"`
	PublishedDate *string `json:"published_date" validate:"required"`
	Title         *string `json:"title" validate:"required"`
	Author        string  `json:"author"`
	Body          string  `json:"body"`
}

func (s *Stage) parseWebContent(record model.StagedRecord) (model.ProductionRecord, *ValidationError) {
	var payload webPayload
	if verr := s.decodePayload(record.Payload, &payload); verr != nil {
		return nil, verr
	}

	published, err := time.Parse("2006-01-02", *payload.PublishedDate)
	if err != nil {
		return nil, &ValidationError{
			Reason: ReasonTypeMismatch,
			Field:  "published_date",
			Detail: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *payload.PublishedDate),
		}
	}

	return &model.WebContent{
		SourceURL:     *payload.SourceURL,
		PublishedDate: published,
		Title:         strings.TrimSpace(*payload.Title),
		Author:        strings.TrimSpace(payload.Author),
		Body:          payload.Body,
		WordCount:     len(strings.Fields(payload.Body)),
		RunID:         record.RunID,
	}, nil
}
