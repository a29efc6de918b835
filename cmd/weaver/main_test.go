package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/hub-weaver/internal/checkpoint"
	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
	"github.com/alvmarrod/hub-weaver/internal/metrics"
	"github.com/alvmarrod/hub-weaver/internal/source"
	"github.com/alvmarrod/hub-weaver/internal/storage"
)

// writeWorkspace creates a fixture network and a config pointing every path into dir
func writeWorkspace(t *testing.T, budget int) (string, string) {
	t.Helper()
	for _, env := range []string{"WEAVER_SOURCE_TOKEN", "WEAVER_SOURCE_BASE_URL", "WEAVER_SEED_USER", "WEAVER_DB_PATH", "WEAVER_LOG_LEVEL"} {
		t.Setenv(env, "")
	}
	dir := t.TempDir()

	fx := source.Fixture{Users: []source.FixtureUser{
		{ID: 1, Name: "Seed", ScreenName: "seed", Outbound: []graph.UserID{2, 3}, Inbound: []graph.UserID{4}},
		{ID: 2, Name: "Two", ScreenName: "two", Outbound: []graph.UserID{3}, Inbound: []graph.UserID{1}},
		{ID: 3, Name: "Three", ScreenName: "three", Outbound: []graph.UserID{1}, Inbound: []graph.UserID{1, 2}},
		{ID: 4, Name: "Four", ScreenName: "four", Outbound: []graph.UserID{1}},
	}}
	data, err := json.Marshal(fx)
	require.NoError(t, err)
	fixturePath := filepath.Join(dir, "fixture.json")
	require.NoError(t, os.WriteFile(fixturePath, data, 0644))

	p := func(name string) string { return filepath.Join(dir, name) }
	cfg := map[string]any{
		"seed_user":       "@seed",
		"node_budget":     budget,
		"live_checkpoint": true,
		"log_level":       "warn",
		"paths": map[string]string{
			"users":                       p("users.json"),
			"adjacency":                   p("adjacency.json"),
			"users_checkpoint_prefix":     p("users_checkpoint_"),
			"adjacency_checkpoint_prefix": p("adjacency_checkpoint_"),
			"index_map":                   p("index_map.json"),
			"dense_matrix":                p("dense.json"),
			"sparse_matrix":               p("sparse.json"),
			"db":                          p("weaver.db"),
			"metrics":                     p("metrics.json"),
			"history":                     p("history.json"),
		},
		"source":  map[string]any{"kind": "fixture", "fixture_path": fixturePath, "page_size": 1},
		"scoring": map[string]any{"top_k": 2, "max_iterations": 1000},
	}
	data, err = json.Marshal(cfg)
	require.NoError(t, err)
	configPath := p("config.json")
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	return dir, configPath
}

func TestRunPipelineEndToEnd(t *testing.T) {
	dir, configPath := writeWorkspace(t, 10)
	out := &bytes.Buffer{}

	require.NoError(t, run(out, []string{"-config", configPath, "run"}))

	g, err := checkpoint.LoadGraph(filepath.Join(dir, "users.json"), filepath.Join(dir, "adjacency.json"))
	require.NoError(t, err)
	assert.Equal(t, []graph.UserID{1, 2, 3, 4}, g.Users.IDs())

	for slot := 0; slot < 2; slot++ {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("users_checkpoint_%d", slot)))
	}

	idx, err := matrix.LoadIndexMap(filepath.Join(dir, "index_map.json"))
	require.NoError(t, err)
	dense, err := matrix.Load(filepath.Join(dir, "dense.json"))
	require.NoError(t, err)
	sparse, err := matrix.Load(filepath.Join(dir, "sparse.json"))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.True(t, matrix.Equal(dense, sparse))
	assert.FileExists(t, filepath.Join(dir, "history.json"))

	store, err := storage.NewStorage(filepath.Join(dir, "weaver.db"))
	require.NoError(t, err)
	defer store.Close()

	stored, err := store.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, g.Users.IDs(), stored.Users.IDs())

	scores, err := store.LoadScores()
	require.NoError(t, err)
	require.Len(t, scores, 4)
	assert.Equal(t, 1, scores[0].AuthorityRank)
	assert.InDelta(t, 1.0, scores[0].Authority, 1e-12)

	data, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)
	var summary metrics.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, reasonCompleted, summary.TerminationReason)
	assert.Equal(t, 4, summary.NodesDiscovered)
	assert.Equal(t, 4, summary.NodesExplored)
	assert.NotZero(t, summary.HITSIterations)
}

func TestConvertFromDatabase(t *testing.T) {
	dir, configPath := writeWorkspace(t, 2)
	out := &bytes.Buffer{}

	require.NoError(t, run(out, []string{"-config", configPath, "crawl"}))
	require.NoError(t, os.Remove(filepath.Join(dir, "users.json")))

	require.NoError(t, run(out, []string{"-config", configPath, "-from-db", "convert"}))

	idx, err := matrix.LoadIndexMap(filepath.Join(dir, "index_map.json"))
	require.NoError(t, err)
	assert.Equal(t, []graph.UserID{1, 2}, idx.IDs())
}

func TestRunHelp(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, run(out, []string{"-h"}))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunRejectsBadInvocations(t *testing.T) {
	_, configPath := writeWorkspace(t, 2)
	out := &bytes.Buffer{}

	assert.Error(t, run(out, []string{"-config", configPath}))
	assert.Error(t, run(out, []string{"-config", configPath, "bogus"}))
	assert.Error(t, run(out, []string{"-config", filepath.Join(t.TempDir(), "missing.json"), "crawl"}))
}

func TestTerminationReason(t *testing.T) {
	assert.Equal(t, reasonCompleted, terminationReason(nil))
	assert.Equal(t, reasonSignal, terminationReason(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, reasonError, terminationReason(source.ErrNotFound))
}
