package matrix

import (
	"fmt"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/jsonfile"
)

// artifact is the on-disk form of a matrix. Dense matrices store one
// "0101..." string per row; sparse ones store the CSR arrays.
type artifact struct {
	Encoding string   `json:"encoding"`
	N        int      `json:"n"`
	Rows     []string `json:"rows,omitempty"`
	Indptr   []int    `json:"indptr,omitempty"`
	Indices  []int    `json:"indices,omitempty"`
}

// Save writes a matrix artifact
func Save(path string, m Matrix) error {
	a := artifact{Encoding: m.Encoding().String(), N: m.Dim()}

	switch mm := m.(type) {
	case *CSRMatrix:
		a.Indptr = mm.indptr
		a.Indices = mm.indices
	default:
		d := ToDense(m)
		a.Rows = make([]string, d.n)
		for i := 0; i < d.n; i++ {
			a.Rows[i] = string(d.row(i))
		}
	}

	return jsonfile.Write(path, a)
}

// Load reads a matrix artifact in whatever encoding it was saved with
func Load(path string) (Matrix, error) {
	var a artifact
	if err := jsonfile.Read(path, &a); err != nil {
		return nil, err
	}

	enc, err := ParseEncoding(a.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if a.N < 0 {
		return nil, fmt.Errorf("%s: negative dimension", path)
	}

	if enc == Sparse {
		if len(a.Indptr) != a.N+1 || a.Indptr[0] != 0 || a.Indptr[a.N] != len(a.Indices) {
			return nil, fmt.Errorf("%s: malformed CSR index pointer", path)
		}
		rows := make([][]int, a.N)
		for i := 0; i < a.N; i++ {
			if a.Indptr[i] > a.Indptr[i+1] {
				return nil, fmt.Errorf("%s: malformed CSR index pointer", path)
			}
			for _, j := range a.Indices[a.Indptr[i]:a.Indptr[i+1]] {
				if j < 0 || j >= a.N {
					return nil, fmt.Errorf("%s: column %d out of range", path, j)
				}
				rows[i] = append(rows[i], j)
			}
		}
		return NewCSR(a.N, rows), nil
	}

	if len(a.Rows) != a.N {
		return nil, fmt.Errorf("%s: expected %d rows, found %d", path, a.N, len(a.Rows))
	}
	d := NewDense(a.N)
	for i, row := range a.Rows {
		if len(row) != a.N {
			return nil, fmt.Errorf("%s: row %d has %d columns", path, i, len(row))
		}
		for j := 0; j < a.N; j++ {
			switch row[j] {
			case '1':
				d.Set(i, j)
			case '0':
			default:
				return nil, fmt.Errorf("%s: invalid cell %q at (%d, %d)", path, row[j], i, j)
			}
		}
	}
	return d, nil
}

// SaveIndexMap writes the index -> user id mapping as a JSON array
func SaveIndexMap(path string, m *IndexMap) error {
	return jsonfile.Write(path, m.ids)
}

// LoadIndexMap reads an index map artifact
func LoadIndexMap(path string) (*IndexMap, error) {
	var ids []graph.UserID
	if err := jsonfile.Read(path, &ids); err != nil {
		return nil, err
	}
	return NewIndexMap(ids)
}
