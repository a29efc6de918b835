package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/hits"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "weaver.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleGraph is discovered in the order 30, 10, 20
func sampleGraph() *graph.Graph {
	g := graph.New()
	g.AddUser(30, graph.UserRecord{Name: "Seed", ScreenName: "seed"})
	g.AddUser(10, graph.UserRecord{Name: "Ann", ScreenName: "ann"})
	g.AddUser(20, graph.UserRecord{Name: "Bob", ScreenName: "bob"})
	g.Adjacency.Set(30, graph.Adjacency{Outbound: []graph.UserID{20, 10}, Inbound: []graph.UserID{10}})
	g.Adjacency.Set(10, graph.Adjacency{Outbound: []graph.UserID{30}})
	return g
}

func snapshot(g *graph.Graph) map[string]any {
	out := map[string]any{"order": g.Users.IDs()}
	for _, id := range g.Users.IDs() {
		rec, _ := g.Users.Get(id)
		adj, _ := g.Adjacency.Get(id)
		out[rec.ScreenName] = []any{rec, adj}
	}
	return out
}

func TestGraphRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	g := sampleGraph()

	require.NoError(t, s.SaveGraph(g))
	loaded, err := s.LoadGraph()
	require.NoError(t, err)

	if diff := cmp.Diff(snapshot(g), snapshot(loaded)); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveGraphReplacesPreviousGraph(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.SaveGraph(sampleGraph()))

	small := graph.New()
	small.AddUser(99, graph.UserRecord{ScreenName: "solo"})
	require.NoError(t, s.SaveGraph(small))

	loaded, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, []graph.UserID{99}, loaded.Users.IDs())
	_, edges := loaded.GetStats()
	assert.Zero(t, edges)
}

func TestLoadGraphEmptyDatabase(t *testing.T) {
	s := newTestStorage(t)
	g, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Zero(t, g.Len())
}

func TestScoresRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.SaveGraph(sampleGraph()))

	idx, err := matrix.NewIndexMap([]graph.UserID{30, 10, 20})
	require.NoError(t, err)
	res := &hits.Result{
		Hubs:        []float64{1, 0.25, 0},
		Authorities: []float64{0.5, 0.5, 1},
	}
	require.NoError(t, s.SaveScores(idx, res))

	scores, err := s.LoadScores()
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, Score{UserID: 20, ScreenName: "bob", Hub: 0, Authority: 1, HubRank: 3, AuthorityRank: 1}, scores[0])
	assert.Equal(t, graph.UserID(30), scores[1].UserID)
	assert.Equal(t, 2, scores[1].AuthorityRank)
	assert.Equal(t, 1, scores[1].HubRank)
	assert.Equal(t, graph.UserID(10), scores[2].UserID)
}

func TestSaveScoresRejectsMismatchedLengths(t *testing.T) {
	s := newTestStorage(t)
	idx, err := matrix.NewIndexMap([]graph.UserID{1, 2})
	require.NoError(t, err)

	err = s.SaveScores(idx, &hits.Result{Hubs: []float64{1}, Authorities: []float64{1}})
	assert.Error(t, err)
}
