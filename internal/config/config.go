package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hollyoak/flaircast/internal/engine/feature"
	"github.com/hollyoak/flaircast/internal/engine/imbalance"
	"github.com/hollyoak/flaircast/internal/engine/trainer"
	"github.com/hollyoak/flaircast/internal/ingest"
)

// Config holds all flaircast configuration.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Corpus    CorpusConfig     `yaml:"corpus"`
	Normalize NormalizeConfig  `yaml:"normalize"`
	Feature   feature.Config   `yaml:"feature"`
	Imbalance imbalance.Config `yaml:"imbalance"`
	Trainer   trainer.Config   `yaml:"trainer"`
	Ingest    ingest.Config    `yaml:"ingest"`
	Service   ServiceConfig    `yaml:"service"`
	Server    ServerConfig     `yaml:"server"`
	LogLevel  string           `yaml:"log_level"`
}

// DatabaseConfig holds corpus store connection settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// CorpusConfig selects which stored submissions form the training corpus.
type CorpusConfig struct {
	Subreddit    string   `yaml:"subreddit"`
	Flairs       []string `yaml:"flairs"` // empty = every labeled flair
	Start        string   `yaml:"start"`  // YYYY-MM-DD, empty = unbounded
	End          string   `yaml:"end"`
	Limit        int      `yaml:"limit"`
	TestFraction float64  `yaml:"test_fraction"`
	Seed         int64    `yaml:"seed"`
}

// NormalizeConfig holds text normalization settings. The stopword file, when
// set, extends the embedded English set.
type NormalizeConfig struct {
	MinTokenLen  *int   `yaml:"min_token_len"` // nil = 3; explicit 0 disables
	StopwordFile string `yaml:"stopword_file"`
	Stem         *bool  `yaml:"stem"` // nil = on
}

// ServiceConfig holds inference settings. The confidence threshold and the
// macro-F1 floor are policy knobs calibrated against real corpus statistics,
// never hard-coded.
type ServiceConfig struct {
	ArtifactPath        string  `yaml:"artifact_path"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML config at path (when non-empty), then applies
// environment-variable overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = getenv("FLAIRCAST_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenv("FLAIRCAST_DB_DSN", cfg.Database.DSN)
	cfg.Corpus.Subreddit = getenv("FLAIRCAST_SUBREDDIT", cfg.Corpus.Subreddit)
	cfg.Service.ArtifactPath = getenv("FLAIRCAST_ARTIFACT", cfg.Service.ArtifactPath)
	cfg.Service.ConfidenceThreshold = getenvFloat("FLAIRCAST_CONFIDENCE_THRESHOLD", cfg.Service.ConfidenceThreshold)
	cfg.Server.Addr = getenv("FLAIRCAST_ADDR", cfg.Server.Addr)
	cfg.LogLevel = getenv("FLAIRCAST_LOG_LEVEL", cfg.LogLevel)
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "flaircast.db"
	}
	if cfg.Corpus.TestFraction == 0 {
		cfg.Corpus.TestFraction = 0.2
	}
	if cfg.Normalize.MinTokenLen == nil {
		n := 3
		cfg.Normalize.MinTokenLen = &n
	}
	if cfg.Imbalance.Mode == "" {
		cfg.Imbalance.Mode = imbalance.ModeWeights
	}
	if cfg.Service.ConfidenceThreshold == 0 {
		cfg.Service.ConfidenceThreshold = 0.5
	}
	if cfg.Service.ArtifactPath == "" {
		cfg.Service.ArtifactPath = "models/flaircast.model.json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
