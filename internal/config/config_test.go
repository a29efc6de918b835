package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"WEAVER_SOURCE_TOKEN", "WEAVER_SOURCE_BASE_URL", "WEAVER_SEED_USER", "WEAVER_DB_PATH", "WEAVER_LOG_LEVEL"} {
		t.Setenv(env, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{
		"seed_user": "@seed",
		"outbound_cap": 0,
		"source": {"base_url": "http://api.local"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "@seed", cfg.SeedUser)
	assert.Equal(t, 0, cfg.OutboundCap, "an explicit zero cap is kept")
	assert.Equal(t, 200, cfg.InboundCap)
	assert.Equal(t, 500, cfg.NodeBudget)
	assert.Equal(t, 15*time.Minute, cfg.FallbackWait())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, SourceHTTP, cfg.Source.Kind)
	assert.Equal(t, 200, cfg.Source.PageSize)
	assert.Equal(t, matrix.Sparse, cfg.Encoding())
	assert.Equal(t, 10, cfg.Scoring.TopK)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, "data/matrix_sparse.json", cfg.MatrixPath(matrix.Sparse))
	assert.Equal(t, "data/matrix_dense.json", cfg.MatrixPath(matrix.Dense))
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "weaver.toml", `
seed_user = "seed"
node_budget = 3
live_checkpoint = true
log_level = "debug"

[source]
kind = "fixture"
fixture_path = "fixture.json"

[scoring]
encoding = "dense"
max_iterations = 50
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.NodeBudget)
	assert.True(t, cfg.LiveCheckpoint)
	assert.Equal(t, SourceFixture, cfg.Source.Kind)
	assert.Equal(t, "fixture.json", cfg.Source.FixturePath)
	assert.Equal(t, matrix.Dense, cfg.Encoding())
	assert.Equal(t, 50, cfg.Scoring.MaxIterations)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "weaver.toml", `
seed_user = "seed"
node_bugdet = 3

[scoring]
epsilom = 0.1
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_bugdet")
	assert.Contains(t, err.Error(), "scoring.epsilom")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEAVER_SOURCE_TOKEN", "secret")
	t.Setenv("WEAVER_SEED_USER", "other")
	t.Setenv("WEAVER_DB_PATH", "/tmp/w.db")

	path := writeFile(t, "config.json", `{"seed_user": "seed", "source": {"base_url": "http://api.local", "token": "file"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Source.Token)
	assert.Equal(t, "other", cfg.SeedUser)
	assert.Equal(t, "/tmp/w.db", cfg.Paths.DB)
}

func TestValidation(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"missing seed":      `{"source": {"base_url": "http://x"}}`,
		"zero budget":       `{"seed_user": "s", "node_budget": 0, "source": {"base_url": "http://x"}}`,
		"negative cap":      `{"seed_user": "s", "inbound_cap": -1, "source": {"base_url": "http://x"}}`,
		"http without url":  `{"seed_user": "s"}`,
		"fixture w/o path":  `{"seed_user": "s", "source": {"kind": "fixture"}}`,
		"unknown kind":      `{"seed_user": "s", "source": {"kind": "ftp"}}`,
		"bad encoding":      `{"seed_user": "s", "source": {"base_url": "http://x"}, "scoring": {"encoding": "coo"}}`,
		"negative epsilon":  `{"seed_user": "s", "source": {"base_url": "http://x"}, "scoring": {"epsilon": -1}}`,
		"bad log level":     `{"seed_user": "s", "log_level": "loud", "source": {"base_url": "http://x"}}`,
		"unknown field":     `{"seed_user": "s", "seed_url": "x", "source": {"base_url": "http://x"}}`,
		"short timeout":     `{"seed_user": "s", "source": {"base_url": "http://x", "request_timeout_ms": 10}}`,
		"negative iter cap": `{"seed_user": "s", "source": {"base_url": "http://x"}, "scoring": {"max_iterations": -1}}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", content))
			assert.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
