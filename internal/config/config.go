package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

// Source kinds
const (
	SourceHTTP    = "http"
	SourceFixture = "fixture"
)

// Config holds all runtime configuration parameters
type Config struct {
	SeedUser            string  `json:"seed_user" toml:"seed_user"`
	OutboundCap         int     `json:"outbound_cap" toml:"outbound_cap"`
	InboundCap          int     `json:"inbound_cap" toml:"inbound_cap"`
	NodeBudget          int     `json:"node_budget" toml:"node_budget"`
	LiveCheckpoint      bool    `json:"live_checkpoint" toml:"live_checkpoint"`
	FallbackWaitSeconds int     `json:"fallback_wait_seconds" toml:"fallback_wait_seconds"`
	LogLevel            string  `json:"log_level" toml:"log_level"`
	MetricsAddr         string  `json:"metrics_addr" toml:"metrics_addr"`
	Paths               Paths   `json:"paths" toml:"paths"`
	Source              Source  `json:"source" toml:"source"`
	Scoring             Scoring `json:"scoring" toml:"scoring"`
}

// Paths locates every artifact the tool reads or writes
type Paths struct {
	Users                     string `json:"users" toml:"users"`
	Adjacency                 string `json:"adjacency" toml:"adjacency"`
	UsersCheckpointPrefix     string `json:"users_checkpoint_prefix" toml:"users_checkpoint_prefix"`
	AdjacencyCheckpointPrefix string `json:"adjacency_checkpoint_prefix" toml:"adjacency_checkpoint_prefix"`
	IndexMap                  string `json:"index_map" toml:"index_map"`
	DenseMatrix               string `json:"dense_matrix" toml:"dense_matrix"`
	SparseMatrix              string `json:"sparse_matrix" toml:"sparse_matrix"`
	DB                        string `json:"db" toml:"db"`
	Metrics                   string `json:"metrics" toml:"metrics"`
	History                   string `json:"history" toml:"history"`
}

// Source selects and tunes the relationship source
type Source struct {
	Kind              string  `json:"kind" toml:"kind"`
	BaseURL           string  `json:"base_url" toml:"base_url"`
	Token             string  `json:"token" toml:"token"`
	FixturePath       string  `json:"fixture_path" toml:"fixture_path"`
	PageSize          int     `json:"page_size" toml:"page_size"`
	RequestsPerSecond float64 `json:"requests_per_second" toml:"requests_per_second"`
	RequestTimeoutMs  int     `json:"request_timeout_ms" toml:"request_timeout_ms"`
	UserCacheSize     int     `json:"user_cache_size" toml:"user_cache_size"`
}

// Scoring tunes the HITS run
type Scoring struct {
	Epsilon       float64 `json:"epsilon" toml:"epsilon"`
	MaxIterations int     `json:"max_iterations" toml:"max_iterations"`
	Encoding      string  `json:"encoding" toml:"encoding"`
	TopK          int     `json:"top_k" toml:"top_k"`
}

// Default returns the configuration used for every field a file leaves out
func Default() Config {
	return Config{
		OutboundCap:         200,
		InboundCap:          200,
		NodeBudget:          500,
		FallbackWaitSeconds: 900,
		LogLevel:            "info",
		Paths: Paths{
			Users:                     "data/users.json",
			Adjacency:                 "data/adjacency.json",
			UsersCheckpointPrefix:     "data/users_checkpoint_",
			AdjacencyCheckpointPrefix: "data/adjacency_checkpoint_",
			IndexMap:                  "data/index_map.json",
			DenseMatrix:               "data/matrix_dense.json",
			SparseMatrix:              "data/matrix_sparse.json",
			DB:                        "data/weaver.db",
			Metrics:                   "data/metrics.json",
			History:                   "data/hits_history.json",
		},
		Source: Source{
			Kind:             SourceHTTP,
			PageSize:         200,
			RequestTimeoutMs: 10000,
			UserCacheSize:    1024,
		},
		Scoring: Scoring{
			Epsilon:  1e-10,
			Encoding: matrix.Sparse.String(),
			TopK:     10,
		},
	}
}

// LoadConfig reads and validates configuration from a JSON or TOML file.
// Values from the environment (and an optional .env file) override the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("failed to parse config TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// applyEnv lets credentials and endpoints live outside the config file
func applyEnv(cfg *Config) {
	for env, field := range map[string]*string{
		"WEAVER_SOURCE_TOKEN":    &cfg.Source.Token,
		"WEAVER_SOURCE_BASE_URL": &cfg.Source.BaseURL,
		"WEAVER_SEED_USER":       &cfg.SeedUser,
		"WEAVER_DB_PATH":         &cfg.Paths.DB,
		"WEAVER_LOG_LEVEL":       &cfg.LogLevel,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

// applyDefaults fills values that an explicit empty entry would leave unusable
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = def.Source.Kind
	}
	if cfg.Source.PageSize == 0 {
		cfg.Source.PageSize = def.Source.PageSize
	}
	if cfg.Source.RequestTimeoutMs == 0 {
		cfg.Source.RequestTimeoutMs = def.Source.RequestTimeoutMs
	}
	if cfg.Scoring.Encoding == "" {
		cfg.Scoring.Encoding = def.Scoring.Encoding
	}
	if cfg.FallbackWaitSeconds == 0 {
		cfg.FallbackWaitSeconds = def.FallbackWaitSeconds
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if cfg.SeedUser == "" {
		return fmt.Errorf("seed_user is required")
	}
	if cfg.NodeBudget < 1 {
		return fmt.Errorf("node_budget must be >= 1")
	}
	if cfg.OutboundCap < 0 || cfg.InboundCap < 0 {
		return fmt.Errorf("outbound_cap and inbound_cap must be >= 0")
	}
	if cfg.FallbackWaitSeconds < 1 {
		return fmt.Errorf("fallback_wait_seconds must be >= 1")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch cfg.Source.Kind {
	case SourceHTTP:
		if cfg.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http source")
		}
	case SourceFixture:
		if cfg.Source.FixturePath == "" {
			return fmt.Errorf("source.fixture_path is required for the fixture source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", cfg.Source.Kind)
	}
	if cfg.Source.PageSize < 1 {
		return fmt.Errorf("source.page_size must be >= 1")
	}
	if cfg.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requests_per_second must be >= 0")
	}
	if cfg.Source.RequestTimeoutMs < 1000 {
		return fmt.Errorf("source.request_timeout_ms must be >= 1000")
	}
	if cfg.Source.UserCacheSize < 0 {
		return fmt.Errorf("source.user_cache_size must be >= 0")
	}

	if cfg.Scoring.Epsilon <= 0 {
		return fmt.Errorf("scoring.epsilon must be positive")
	}
	if cfg.Scoring.MaxIterations < 0 {
		return fmt.Errorf("scoring.max_iterations must be >= 0")
	}
	if _, err := matrix.ParseEncoding(cfg.Scoring.Encoding); err != nil {
		return fmt.Errorf("scoring.encoding: %w", err)
	}
	if cfg.Scoring.TopK < 0 {
		return fmt.Errorf("scoring.top_k must be >= 0")
	}
	return nil
}

// Level returns the configured logrus level
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// FallbackWait is the sleep used when the rate-limit reset time is unknown
func (c *Config) FallbackWait() time.Duration {
	return time.Duration(c.FallbackWaitSeconds) * time.Second
}

// RequestTimeout is the per-request timeout of the http source
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Source.RequestTimeoutMs) * time.Millisecond
}

// Encoding returns the matrix encoding used for scoring
func (c *Config) Encoding() matrix.Encoding {
	enc, err := matrix.ParseEncoding(c.Scoring.Encoding)
	if err != nil {
		return matrix.Sparse
	}
	return enc
}

// MatrixPath returns the artifact path for the given encoding
func (c *Config) MatrixPath(enc matrix.Encoding) string {
	if enc == matrix.Dense {
		return c.Paths.DenseMatrix
	}
	return c.Paths.SparseMatrix
}
