package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store/model"
)

type weatherResponse struct {
	Location struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		FeelsLikeC float64 `json:"feelslike_c"`
		Humidity   float64 `json:"humidity"`
		PressureMb float64 `json:"pressure_mb"`
		WindKph    float64 `json:"wind_kph"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// WeatherExtractor pulls current conditions for a list of cities from the
// weather API, one request per city.
type WeatherExtractor struct {
	client  *http.Client
	baseURL string
	apiKey  string
	cities  []string
}

func NewWeatherExtractor(client *http.Client, baseURL, apiKey string, cities []string) *WeatherExtractor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WeatherExtractor{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		cities:  cities,
	}
}

func (e *WeatherExtractor) SourceType() model.SourceType {
	return model.SourceWeatherAPI
}

func (e *WeatherExtractor) Extract(ctx context.Context) iter.Seq2[model.RawRecord, error] {
	return func(yield func(model.RawRecord, error) bool) {
		for _, city := range e.cities {
			record, err := e.fetchCity(ctx, city)
			if err != nil {
				yield(model.RawRecord{}, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (e *WeatherExtractor) fetchCity(ctx context.Context, city string) (model.RawRecord, error) {
	endpoint, err := url.Parse(e.baseURL)
	if err != nil {
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(errors.Wrap(err, "invalid weather api url"))
	}
	query := endpoint.Query()
	query.Set("key", e.apiKey)
	query.Set("q", city)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return model.RawRecord{}, pipeline.NewTransientExtractionError(errors.Wrapf(err, "weather request for %q failed", city))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return model.RawRecord{}, pipeline.NewTransientExtractionError(fmt.Errorf("weather api returned %d for %q", resp.StatusCode, city))
	default:
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(fmt.Errorf("weather api returned %d for %q", resp.StatusCode, city))
	}

	var body weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.RawRecord{}, pipeline.NewPermanentExtractionError(errors.Wrapf(err, "failed to decode weather response for %q", city))
	}

	return model.RawRecord{
		SourceType: model.SourceWeatherAPI,
		Payload: model.JSONMap{
			"city":              body.Location.Name,
			"country":           body.Location.Country,
			"temperature":       body.Current.TempC,
			"feels_like":        body.Current.FeelsLikeC,
			"humidity":          body.Current.Humidity,
			"pressure":          body.Current.PressureMb,
			"weather_condition": body.Current.Condition.Text,
			"wind_speed":        body.Current.WindKph,
		},
		ExtractedAt: time.Now().UTC(),
	}, nil
}
