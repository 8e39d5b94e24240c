package config

import (
	"time"

	"github.com/IBM/sarama"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Pipeline *pipelineConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"ingest"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"INGEST_ADDRESS" default:":8080"`
	MetricsAddress  string `envconfig:"INGEST_METRICS_ADDRESS" default:":8081"`
	LogLevel        string `envconfig:"INGEST_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"INGEST_MIGRATIONS_FOLDER" default:""`
	Kafka           kafkaConfig
}

type kafkaConfig struct {
	Brokers  []string            `envconfig:"INGEST_KAFKA_BROKERS" default:""`
	Topic    string              `envconfig:"INGEST_KAFKA_TOPIC" default:""`
	Version  sarama.KafkaVersion `envconfig:"INGEST_KAFKA_VERSION" default:""`
	ClientID string              `envconfig:"INGEST_KAFKA_CLIENT_ID" default:""`

	SaramaConfig *sarama.Config
}

type pipelineConfig struct {
	Name                 string        `envconfig:"INGEST_PIPELINE_NAME" default:"multi_source_ingestion"`
	ChunkSize            int           `envconfig:"INGEST_CHUNK_SIZE" default:"100"`
	MaxRetries           int           `envconfig:"INGEST_MAX_RETRIES" default:"3"`
	RetryBaseDelay       time.Duration `envconfig:"INGEST_RETRY_BASE_DELAY" default:"500ms"`
	ExtractTimeout       time.Duration `envconfig:"INGEST_EXTRACT_TIMEOUT" default:"30s"`
	WarningsAffectStatus bool          `envconfig:"INGEST_WARNINGS_AFFECT_STATUS" default:"false"`
	StagingRetention     time.Duration `envconfig:"INGEST_STAGING_RETENTION" default:"168h"`
	SweepInterval        time.Duration `envconfig:"INGEST_SWEEP_INTERVAL" default:"1h"`
	CheckSpecsFolder     string        `envconfig:"INGEST_CHECK_SPECS_FOLDER" default:"checks"`
	DataFolder           string        `envconfig:"INGEST_DATA_FOLDER" default:"data/raw"`
	SourcesFile          string        `envconfig:"INGEST_SOURCES_FILE" default:"sources.yaml"`
	WeatherAPIKey        string        `envconfig:"INGEST_WEATHER_API_KEY" default:""`
	WeatherAPIURL        string        `envconfig:"INGEST_WEATHER_API_URL" default:"http://api.weatherapi.com/v1/current.json"`
	ExternalDBDSN        string        `envconfig:"INGEST_EXTERNAL_DB_DSN" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config populated with defaults only, ignoring the
// environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type:     "pgsql",
			Hostname: "localhost",
			Port:     "5432",
			Name:     "ingest",
			User:     "admin",
			Password: "adminpass",
		},
		Service: &svcConfig{
			Address:        ":8080",
			MetricsAddress: ":8081",
			LogLevel:       "info",
		},
		Pipeline: &pipelineConfig{
			Name:             "multi_source_ingestion",
			ChunkSize:        100,
			MaxRetries:       3,
			RetryBaseDelay:   500 * time.Millisecond,
			ExtractTimeout:   30 * time.Second,
			StagingRetention: 168 * time.Hour,
			SweepInterval:    time.Hour,
			CheckSpecsFolder: "checks",
			DataFolder:       "data/raw",
		},
	}
}
