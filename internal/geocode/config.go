package geocode

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Defaults match the public BAN deployment and its fair-use limits.
const (
	DefaultBANBaseURL        = "https://api-adresse.data.gouv.fr"
	DefaultCommuneAPIBaseURL = "https://geo.api.gouv.fr"
	DefaultScoreThreshold    = 0.5
	DefaultBatchSize         = 50
	DefaultRequestsPerSecond = 25
)

// Config tunes the geocoding client and the bulk runner. Loaded from an
// optional YAML file so a self-hosted addok instance or a slower rate can be
// configured without a rebuild.
type Config struct {
	BANBaseURL        string  `yaml:"ban_base_url"`
	CommuneAPIBaseURL string  `yaml:"commune_api_base_url"`
	ScoreThreshold    float64 `yaml:"score_threshold"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		BANBaseURL:        DefaultBANBaseURL,
		CommuneAPIBaseURL: DefaultCommuneAPIBaseURL,
		ScoreThreshold:    DefaultScoreThreshold,
		BatchSize:         DefaultBatchSize,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
// A missing file is not an error: the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("GEOCODE_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read geocode config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse geocode config: %w", err)
	}

	if fileCfg.BANBaseURL != "" {
		cfg.BANBaseURL = fileCfg.BANBaseURL
	}
	if fileCfg.CommuneAPIBaseURL != "" {
		cfg.CommuneAPIBaseURL = fileCfg.CommuneAPIBaseURL
	}
	if fileCfg.ScoreThreshold > 0 {
		cfg.ScoreThreshold = fileCfg.ScoreThreshold
	}
	if fileCfg.BatchSize > 0 {
		cfg.BatchSize = fileCfg.BatchSize
	}
	if fileCfg.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = fileCfg.RequestsPerSecond
	}

	return cfg, nil
}
