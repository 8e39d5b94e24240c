package transform

import (
	"strings"

	"github.com/dataforge/ingest/internal/store/model"
)

type weatherPayload struct {
	City             *string  `json:"city" validate:"required"`
	Country          *string  `json:"country" validate:"required"`
	Temperature      *float64 `json:"temperature" validate:"required"`
	FeelsLike        *float64 `json:"feels_like"`
	Humidity         *float64 `json:"humidity" validate:"required"`
	Pressure         *float64 `json:"pressure" validate:"required"`
	WeatherCondition *string  `json:"weather_condition"`
	WindSpeed        *float64 `json:"wind_speed" validate:"required"`
}

func (s *Stage) parseWeather(record model.StagedRecord) (model.ProductionRecord, *ValidationError) {
	var payload weatherPayload
	if verr := s.decodePayload(record.Payload, &payload); verr != nil {
		return nil, verr
	}

	feelsLike := *payload.Temperature
	if payload.FeelsLike != nil {
		feelsLike = *payload.FeelsLike
	}
	condition := ""
	if payload.WeatherCondition != nil {
		condition = strings.ToLower(*payload.WeatherCondition)
	}

	return &model.WeatherMetric{
		City:             strings.ToUpper(*payload.City),
		Country:          *payload.Country,
		RecordedAt:       record.ExtractedAt,
		Temperature:      round2(*payload.Temperature),
		FeelsLike:        round2(feelsLike),
		Humidity:         int(*payload.Humidity),
		Pressure:         *payload.Pressure,
		WeatherCondition: condition,
		WindSpeed:        round2(*payload.WindSpeed),
		RunID:            record.RunID,
	}, nil
}
