package matrix

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Encoding selects the physical layout of an adjacency matrix
type Encoding int

const (
	// Dense stores every cell of the N×N matrix
	Dense Encoding = iota
	// Sparse stores the set cells in compressed sparse row form
	Sparse
)

func (e Encoding) String() string {
	if e == Sparse {
		return "sparse"
	}
	return "dense"
}

// ParseEncoding parses "dense" or "sparse"
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense":
		return Dense, nil
	case "sparse", "csr":
		return Sparse, nil
	default:
		return Dense, fmt.Errorf("unknown matrix encoding %q", s)
	}
}

// Matrix is a square 0/1 matrix
type Matrix interface {
	Dim() int
	At(i, j int) bool
	// NNZ returns the number of set cells
	NNZ() int
	// MulVec computes dst = M·x
	MulVec(dst, x []float64)
	// MulTransVec computes dst = Mᵀ·x
	MulTransVec(dst, x []float64)
	Encoding() Encoding
}

// DenseMatrix is an N×N 0/1 matrix backed by a gonum dense matrix.
// The backing matrix is nil when N is 0.
type DenseMatrix struct {
	n     int
	cells *mat.Dense
}

// NewDense creates an all-zero N×N matrix
func NewDense(n int) *DenseMatrix {
	d := &DenseMatrix{n: n}
	if n > 0 {
		d.cells = mat.NewDense(n, n, nil)
	}
	return d
}

// Set marks cell (i, j); setting it again is a no-op
func (m *DenseMatrix) Set(i, j int) {
	m.cells.Set(i, j, 1)
}

func (m *DenseMatrix) Dim() int { return m.n }

func (m *DenseMatrix) At(i, j int) bool { return m.cells.At(i, j) != 0 }

func (m *DenseMatrix) Encoding() Encoding { return Dense }

// NNZ sums the cells, which are all 0 or 1
func (m *DenseMatrix) NNZ() int {
	if m.n == 0 {
		return 0
	}
	return int(floats.Sum(m.cells.RawMatrix().Data))
}

func (m *DenseMatrix) MulVec(dst, x []float64) {
	if m.n == 0 {
		return
	}
	mat.NewVecDense(m.n, dst[:m.n]).MulVec(m.cells, mat.NewVecDense(m.n, x[:m.n]))
}

func (m *DenseMatrix) MulTransVec(dst, x []float64) {
	if m.n == 0 {
		return
	}
	mat.NewVecDense(m.n, dst[:m.n]).MulVec(m.cells.T(), mat.NewVecDense(m.n, x[:m.n]))
}

// row returns row i as '0'/'1' bytes
func (m *DenseMatrix) row(i int) []byte {
	out := make([]byte, m.n)
	for j, c := range m.cells.RawRowView(i) {
		out[j] = '0'
		if c != 0 {
			out[j] = '1'
		}
	}
	return out
}

// CSRMatrix is a compressed sparse row 0/1 matrix. Column indices of each row are sorted and unique.
type CSRMatrix struct {
	n       int
	indptr  []int
	indices []int
}

// NewCSR builds a CSR matrix from per-row column lists, which may be unsorted and contain duplicates
func NewCSR(n int, rows [][]int) *CSRMatrix {
	m := &CSRMatrix{n: n, indptr: make([]int, n+1)}
	for i := 0; i < n; i++ {
		var cols []int
		if i < len(rows) {
			cols = append([]int{}, rows[i]...)
		}
		sort.Ints(cols)
		last := -1
		for _, j := range cols {
			if j == last {
				continue
			}
			m.indices = append(m.indices, j)
			last = j
		}
		m.indptr[i+1] = len(m.indices)
	}
	return m
}

func (m *CSRMatrix) Dim() int { return m.n }

func (m *CSRMatrix) At(i, j int) bool {
	row := m.indices[m.indptr[i]:m.indptr[i+1]]
	k := sort.SearchInts(row, j)
	return k < len(row) && row[k] == j
}

func (m *CSRMatrix) Encoding() Encoding { return Sparse }

func (m *CSRMatrix) NNZ() int { return len(m.indices) }

func (m *CSRMatrix) MulVec(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		sum := 0.0
		for _, j := range m.indices[m.indptr[i]:m.indptr[i+1]] {
			sum += x[j]
		}
		dst[i] = sum
	}
}

func (m *CSRMatrix) MulTransVec(dst, x []float64) {
	for j := range dst[:m.n] {
		dst[j] = 0
	}
	for i := 0; i < m.n; i++ {
		for _, j := range m.indices[m.indptr[i]:m.indptr[i+1]] {
			dst[j] += x[i]
		}
	}
}

// ToDense materialises any matrix in dense form
func ToDense(m Matrix) *DenseMatrix {
	if d, ok := m.(*DenseMatrix); ok {
		return d
	}
	n := m.Dim()
	d := NewDense(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if m.At(i, j) {
				d.Set(i, j)
			}
		}
	}
	return d
}

// ToCSR converts any matrix to compressed sparse row form
func ToCSR(m Matrix) *CSRMatrix {
	if c, ok := m.(*CSRMatrix); ok {
		return c
	}
	n := m.Dim()
	rows := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if m.At(i, j) {
				rows[i] = append(rows[i], j)
			}
		}
	}
	return NewCSR(n, rows)
}

// Equal reports whether two matrices have the same dimension and cells, regardless of encoding
func Equal(a, b Matrix) bool {
	if a.Dim() != b.Dim() {
		return false
	}
	if a.Dim() == 0 {
		return true
	}
	return mat.Equal(ToDense(a).cells, ToDense(b).cells)
}
