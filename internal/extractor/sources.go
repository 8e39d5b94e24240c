package extractor

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// SourcesConfig describes where each source pulls its data from. It is loaded
// from a yaml file next to the pipeline configuration.
type SourcesConfig struct {
	Weather    WeatherSource    `json:"weather"`
	Files      FileSource       `json:"files"`
	Web        WebSource        `json:"web"`
	ExternalDB ExternalDBSource `json:"external_db"`
}

type WeatherSource struct {
	Cities []string `json:"cities"`
}

type FileSource struct {
	Folder string `json:"folder"`
}

type WebSource struct {
	URLs []string `json:"urls"`
}

type ExternalDBSource struct {
	Table string `json:"table"`
}

func LoadSources(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	cfg := &SourcesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	return cfg, nil
}
