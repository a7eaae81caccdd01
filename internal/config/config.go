package config

import (
	_ "embed"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ThresholdEnv is the environment variable holding the face match threshold.
const ThresholdEnv = "FACE_MATCH_THRESHOLD"

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Match     MatchConfig
	Web       WebConfig
	Logging   LoggingConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist lost-descriptor HNSW index (optional, rebuilt on startup when empty)
}

type EmbeddingConfig struct {
	URL           string // face embedding server, defaults to http://localhost:8000
	DescriptorDim int    // defaults to 128
}

type MatchConfig struct {
	Threshold        float64 // snapshot at load time; the policy re-reads the environment per decision
	SweepConcurrency int     // found reports scored in parallel during a full sweep
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated CORS whitelist, localhost is always allowed
}

type LoggingConfig struct {
	Env   string // prod, dev, local
	Level string // debug, info, warn, error
}

// Defaults mirrors defaults.yaml.
type Defaults struct {
	Match struct {
		Threshold        float64 `yaml:"threshold"`
		SweepConcurrency int     `yaml:"sweep_concurrency"`
	} `yaml:"match"`
	Embedding struct {
		URL           string `yaml:"url"`
		DescriptorDim int    `yaml:"descriptor_dim"`
	} `yaml:"embedding"`
	Database struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
	Logging struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

var defaults = mustParseDefaults()

func mustParseDefaults() Defaults {
	var d Defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

// GetDefaults returns the embedded defaults.
func GetDefaults() Defaults {
	return defaults
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// parseThreshold parses a threshold in [0, 1]; anything else, NaN included,
// yields defaultVal.
func parseThreshold(s string, defaultVal float64) float64 {
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return defaultVal
	}
	return f
}

// MatchThreshold reads FACE_MATCH_THRESHOLD from the process environment.
// Called on every match decision so a changed value applies to the next decision.
func MatchThreshold() float64 {
	return parseThreshold(os.Getenv(ThresholdEnv), defaults.Match.Threshold)
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", defaults.Database.MaxOpenConns),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", defaults.Database.MaxIdleConns),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Embedding: EmbeddingConfig{
			URL:           envString("EMBEDDING_URL", defaults.Embedding.URL),
			DescriptorDim: envInt("FACE_DESCRIPTOR_DIM", defaults.Embedding.DescriptorDim),
		},
		Match: MatchConfig{
			Threshold:        MatchThreshold(),
			SweepConcurrency: envInt("MATCH_SWEEP_CONCURRENCY", defaults.Match.SweepConcurrency),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", defaults.Web.Host),
			Port: envInt("WEB_PORT", defaults.Web.Port),

			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Logging: LoggingConfig{
			Env:   envString("APP_ENV", defaults.Logging.Env),
			Level: envString("LOG_LEVEL", defaults.Logging.Level),
		},
	}
}
