package matrix

import (
	"errors"
	"fmt"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// ErrUnknownNeighbor is returned when an adjacency list references a user without its own entry
var ErrUnknownNeighbor = errors.New("neighbor has no adjacency entry")

// IndexMap is the bijection between matrix indices and user ids
type IndexMap struct {
	ids   []graph.UserID
	index map[graph.UserID]int
}

// NewIndexMap assigns index i to ids[i]
func NewIndexMap(ids []graph.UserID) (*IndexMap, error) {
	m := &IndexMap{
		ids:   make([]graph.UserID, len(ids)),
		index: make(map[graph.UserID]int, len(ids)),
	}
	copy(m.ids, ids)
	for i, id := range ids {
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("duplicate user %d in index map", id)
		}
		m.index[id] = i
	}
	return m, nil
}

// Len returns the number of indices
func (m *IndexMap) Len() int { return len(m.ids) }

// ID returns the user at index i
func (m *IndexMap) ID(i int) graph.UserID { return m.ids[i] }

// Index returns the index of a user
func (m *IndexMap) Index(id graph.UserID) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// IDs returns the users in index order
func (m *IndexMap) IDs() []graph.UserID {
	ids := make([]graph.UserID, len(m.ids))
	copy(ids, m.ids)
	return ids
}

// Convert builds the adjacency matrix of a crawl. Indices follow the adjacency
// map order. Cell (i, j) is set when i lists j as outbound or j lists i as
// inbound; both views of the same edge land on the same cell.
func Convert(adjacency *graph.AdjacencyMap, enc Encoding) (Matrix, *IndexMap, error) {
	index, err := NewIndexMap(adjacency.IDs())
	if err != nil {
		return nil, nil, err
	}

	n := index.Len()
	rows := make([][]int, n)
	for i, id := range index.ids {
		adj, _ := adjacency.Get(id)

		for _, to := range adj.Outbound {
			j, ok := index.Index(to)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %d lists %d as outbound", ErrUnknownNeighbor, id, to)
			}
			rows[i] = append(rows[i], j)
		}

		for _, from := range adj.Inbound {
			k, ok := index.Index(from)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %d lists %d as inbound", ErrUnknownNeighbor, id, from)
			}
			rows[k] = append(rows[k], i)
		}
	}

	if enc == Sparse {
		return NewCSR(n, rows), index, nil
	}

	dense := NewDense(n)
	for i, cols := range rows {
		for _, j := range cols {
			dense.Set(i, j)
		}
	}
	return dense, index, nil
}
