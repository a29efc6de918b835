package matrix

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// buildAdjacency creates entries in the given order
func buildAdjacency(order []graph.UserID, out, in map[graph.UserID][]graph.UserID) *graph.AdjacencyMap {
	am := graph.NewAdjacencyMap()
	for _, id := range order {
		am.Set(id, graph.Adjacency{Outbound: out[id], Inbound: in[id]})
	}
	return am
}

func TestConvertDenseAndSparseAgree(t *testing.T) {
	// 7 -> 8 seen from both ends, 9 -> 7 only from 7's inbound list, 10 isolated
	am := buildAdjacency(
		[]graph.UserID{7, 8, 9, 10},
		map[graph.UserID][]graph.UserID{7: {8}, 8: {7, 9}},
		map[graph.UserID][]graph.UserID{7: {9}, 8: {7}},
	)

	dense, idx, err := Convert(am, Dense)
	require.NoError(t, err)
	sparse, idx2, err := Convert(am, Sparse)
	require.NoError(t, err)

	assert.Equal(t, idx.IDs(), idx2.IDs())
	assert.Equal(t, []graph.UserID{7, 8, 9, 10}, idx.IDs())
	assert.Equal(t, Dense, dense.Encoding())
	assert.Equal(t, Sparse, sparse.Encoding())
	assert.True(t, Equal(dense, sparse))

	expected := [][]bool{
		{false, true, false, false},
		{true, false, true, false},
		{true, false, false, false},
		{false, false, false, false},
	}
	for i := range expected {
		for j := range expected[i] {
			assert.Equal(t, expected[i][j], dense.At(i, j), "dense (%d,%d)", i, j)
			assert.Equal(t, expected[i][j], sparse.At(i, j), "sparse (%d,%d)", i, j)
		}
	}
	assert.Equal(t, 4, dense.NNZ())
	assert.Equal(t, 4, sparse.NNZ(), "redundant observations collapse to one cell")
}

func TestConvertIsolatedNodeHasZeroRowAndColumn(t *testing.T) {
	am := buildAdjacency([]graph.UserID{1, 2, 3}, map[graph.UserID][]graph.UserID{1: {2}}, nil)

	m, idx, err := Convert(am, Sparse)
	require.NoError(t, err)
	require.Equal(t, 3, m.Dim())

	k, ok := idx.Index(3)
	require.True(t, ok)
	for i := 0; i < m.Dim(); i++ {
		assert.False(t, m.At(k, i))
		assert.False(t, m.At(i, k))
	}
}

func TestConvertRejectsUnknownNeighbor(t *testing.T) {
	am := buildAdjacency([]graph.UserID{1}, map[graph.UserID][]graph.UserID{1: {2}}, nil)

	_, _, err := Convert(am, Dense)
	assert.ErrorIs(t, err, ErrUnknownNeighbor)
}

func TestConvertEmptyAdjacency(t *testing.T) {
	m, idx, err := Convert(graph.NewAdjacencyMap(), Sparse)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Dim())
	assert.Equal(t, 0, idx.Len())
}

func TestMulVecMatchesAcrossEncodings(t *testing.T) {
	rows := [][]int{{1, 2}, {2}, {0}}
	sparse := NewCSR(3, rows)
	dense := ToDense(sparse)
	x := []float64{1, 2, 4}

	got := make([]float64, 3)
	want := make([]float64, 3)

	sparse.MulVec(got, x)
	dense.MulVec(want, x)
	assert.Equal(t, []float64{6, 4, 1}, got)
	assert.Equal(t, want, got)

	sparse.MulTransVec(got, x)
	dense.MulTransVec(want, x)
	assert.Equal(t, []float64{4, 1, 3}, got)
	assert.Equal(t, want, got)
}

func TestDenseMatrixCells(t *testing.T) {
	d := NewDense(3)
	d.Set(0, 2)
	d.Set(0, 2)
	d.Set(2, 1)

	assert.Equal(t, 2, d.NNZ())
	assert.True(t, d.At(0, 2))
	assert.False(t, d.At(2, 0))
	assert.Equal(t, "001", string(d.row(0)))
	assert.Equal(t, "010", string(d.row(2)))

	empty := NewDense(0)
	assert.Zero(t, empty.NNZ())
	empty.MulVec(nil, nil)
	empty.MulTransVec(nil, nil)
	assert.True(t, Equal(empty, NewCSR(0, nil)))
	assert.False(t, Equal(empty, d))
}

func TestNewCSRSortsAndDeduplicates(t *testing.T) {
	m := NewCSR(3, [][]int{{2, 0, 2}, nil, {1, 1}})
	assert.Equal(t, []int{0, 2, 2, 3}, m.indptr)
	assert.Equal(t, []int{0, 2, 1}, m.indices)
	assert.True(t, Equal(m, ToCSR(ToDense(m))))
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("Sparse")
	require.NoError(t, err)
	assert.Equal(t, Sparse, enc)

	enc, err = ParseEncoding("dense")
	require.NoError(t, err)
	assert.Equal(t, Dense, enc)

	_, err = ParseEncoding("coo")
	assert.Error(t, err)
}

func TestArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	am := buildAdjacency(
		[]graph.UserID{5, 6, 7},
		map[graph.UserID][]graph.UserID{5: {6, 7}, 7: {5}},
		map[graph.UserID][]graph.UserID{6: {7}},
	)

	for _, enc := range []Encoding{Dense, Sparse} {
		m, idx, err := Convert(am, enc)
		require.NoError(t, err)

		path := filepath.Join(dir, enc.String())
		require.NoError(t, Save(path, m))
		loaded, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, enc, loaded.Encoding())
		assert.True(t, Equal(m, loaded), "%s round trip", enc)

		mapPath := filepath.Join(dir, "map")
		require.NoError(t, SaveIndexMap(mapPath, idx))
		loadedIdx, err := LoadIndexMap(mapPath)
		require.NoError(t, err)
		assert.Equal(t, idx.IDs(), loadedIdx.IDs())
	}
}

func TestNewIndexMapRejectsDuplicates(t *testing.T) {
	_, err := NewIndexMap([]graph.UserID{1, 2, 1})
	assert.Error(t, err)
}
