package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductionRecord is implemented by every typed production variant.
// NaturalKey returns the business key used for idempotent upserts;
// two records with the same natural key describe the same entity.
type ProductionRecord interface {
	TableName() string
	NaturalKey() string
	Source() SourceType
}

type WeatherMetric struct {
	ID               uint      `gorm:"primaryKey"`
	City             string    `gorm:"not null;uniqueIndex:idx_weather_natural_key"`
	Country          string    `gorm:"not null;uniqueIndex:idx_weather_natural_key"`
	RecordedAt       time.Time `gorm:"not null;uniqueIndex:idx_weather_natural_key"`
	Temperature      float64   `gorm:"not null"`
	FeelsLike        float64   `gorm:"not null"`
	Humidity         int       `gorm:"not null"`
	Pressure         float64   `gorm:"not null"`
	WeatherCondition string    `gorm:"not null"`
	WindSpeed        float64   `gorm:"not null"`
	RunID            uuid.UUID `gorm:"not null;index"`
	LoadedAt         time.Time `gorm:"autoUpdateTime"`
}

func (WeatherMetric) TableName() string  { return "weather_metrics" }
func (WeatherMetric) Source() SourceType { return SourceWeatherAPI }

func (w WeatherMetric) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", w.City, w.Country, w.RecordedAt.UTC().Format(time.RFC3339))
}

// EqualContent compares the non-key payload fields, ignoring bookkeeping columns.
func (w WeatherMetric) EqualContent(other WeatherMetric) bool {
	return w.Temperature == other.Temperature &&
		w.FeelsLike == other.FeelsLike &&
		w.Humidity == other.Humidity &&
		w.Pressure == other.Pressure &&
		w.WeatherCondition == other.WeatherCondition &&
		w.WindSpeed == other.WindSpeed
}

type Transaction struct {
	ID            uint      `gorm:"primaryKey"`
	TransactionID string    `gorm:"not null;uniqueIndex"`
	Date          time.Time `gorm:"not null"`
	Product       string    `gorm:"not null"`
	Category      string    `gorm:"not null"`
	Region        string    `gorm:"not null"`
	Amount        float64   `gorm:"not null"`
	Quantity      int       `gorm:"not null"`
	SourceFile    string
	RowNumber     int
	RunID         uuid.UUID `gorm:"not null;index"`
	LoadedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string  { return "transactions" }
func (Transaction) Source() SourceType { return SourceCSVFile }

func (t Transaction) NaturalKey() string { return t.TransactionID }

func (t Transaction) EqualContent(other Transaction) bool {
	return t.Date.Equal(other.Date) &&
		t.Product == other.Product &&
		t.Category == other.Category &&
		t.Region == other.Region &&
		t.Amount == other.Amount &&
		t.Quantity == other.Quantity
}

type WebContent struct {
	ID            uint      `gorm:"primaryKey"`
	SourceURL     string    `gorm:"not null;uniqueIndex:idx_web_natural_key"`
	PublishedDate time.Time `gorm:"not null;uniqueIndex:idx_web_natural_key"`
	Title         string    `gorm:"not null"`
	Author        string
	Body          string    `gorm:"type:text"`
	WordCount     int       `gorm:"not null;default:0"`
	RunID         uuid.UUID `gorm:"not null;index"`
	LoadedAt      time.Time `gorm:"autoUpdateTime"`
}

func (WebContent) TableName() string  { return "web_content" }
func (WebContent) Source() SourceType { return SourceWebScrape }

func (w WebContent) NaturalKey() string {
	return fmt.Sprintf("%s|%s", w.SourceURL, w.PublishedDate.UTC().Format("2006-01-02"))
}

func (w WebContent) EqualContent(other WebContent) bool {
	return w.Title == other.Title &&
		w.Author == other.Author &&
		w.Body == other.Body &&
		w.WordCount == other.WordCount
}

type BusinessRecord struct {
	ID            uint      `gorm:"primaryKey"`
	BusinessID    string    `gorm:"not null;uniqueIndex"`
	Name          string    `gorm:"not null"`
	Category      string    `gorm:"not null"`
	Region        string    `gorm:"not null"`
	Revenue       float64   `gorm:"not null"`
	EmployeeCount int       `gorm:"not null;default:0"`
	RegisteredAt  time.Time `gorm:"not null"`
	RunID         uuid.UUID `gorm:"not null;index"`
	LoadedAt      time.Time `gorm:"autoUpdateTime"`
}

func (BusinessRecord) TableName() string  { return "business_records" }
func (BusinessRecord) Source() SourceType { return SourceExternalDB }

func (b BusinessRecord) NaturalKey() string { return b.BusinessID }

func (b BusinessRecord) EqualContent(other BusinessRecord) bool {
	return b.Name == other.Name &&
		b.Category == other.Category &&
		b.Region == other.Region &&
		b.Revenue == other.Revenue &&
		b.EmployeeCount == other.EmployeeCount &&
		b.RegisteredAt.Equal(other.RegisteredAt)
}
