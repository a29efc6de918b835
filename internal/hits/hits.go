// Package hits computes hub and authority scores of a directed graph by power
// iteration over its adjacency matrix.
//
// Each iteration refines authorities from the current hubs (auth = Mᵀ·hub)
// and then hubs from the new authorities (hub = M·auth), dividing each vector
// by its largest element so that scores stay in [0, 1].
package hits

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

// ErrNotConverged is returned when the iteration ceiling is hit before convergence
var ErrNotConverged = errors.New("hits: did not converge")

// DefaultEpsilon is the convergence threshold used when none is configured
const DefaultEpsilon = 1e-4

// Options controls the power iteration
type Options struct {
	// Epsilon is the per-component change below which both vectors are considered stable
	Epsilon float64
	// MaxIterations bounds the number of iterations; 0 means unbounded
	MaxIterations int
}

func (o *Options) validate() error {
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Epsilon < 0 || math.IsNaN(o.Epsilon) {
		return fmt.Errorf("epsilon must be positive, got %v", o.Epsilon)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be >= 0, got %d", o.MaxIterations)
	}
	return nil
}

// Result holds the final scores and the vectors produced by every iteration
type Result struct {
	Hubs             []float64
	Authorities      []float64
	HubHistory       [][]float64
	AuthorityHistory [][]float64
	Iterations       int
	Converged        bool
}

// Score runs HITS on m. When MaxIterations is reached first, the last vectors
// are returned together with ErrNotConverged.
func Score(m matrix.Matrix, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	n := m.Dim()
	res := &Result{
		Hubs:        ones(n),
		Authorities: ones(n),
	}

	// Nothing to propagate: the initial scores are final
	if m.NNZ() == 0 {
		res.Converged = true
		return res, nil
	}

	hubs, auths := res.Hubs, res.Authorities
	for {
		if opts.MaxIterations > 0 && res.Iterations >= opts.MaxIterations {
			logrus.Warnf("HITS stopped after %d iterations without converging", res.Iterations)
			return res, fmt.Errorf("%w after %d iterations", ErrNotConverged, res.Iterations)
		}

		newAuths := make([]float64, n)
		m.MulTransVec(newAuths, hubs)
		normalize(newAuths)
		res.AuthorityHistory = append(res.AuthorityHistory, newAuths)

		newHubs := make([]float64, n)
		m.MulVec(newHubs, newAuths)
		normalize(newHubs)
		res.HubHistory = append(res.HubHistory, newHubs)

		res.Iterations++
		stable := withinEpsilon(newHubs, hubs, opts.Epsilon) && withinEpsilon(newAuths, auths, opts.Epsilon)

		hubs, auths = newHubs, newAuths
		res.Hubs, res.Authorities = hubs, auths

		if stable {
			res.Converged = true
			logrus.Debugf("HITS converged after %d iterations", res.Iterations)
			return res, nil
		}
	}
}

// normalize divides v by its maximum element unless that maximum is zero
func normalize(v []float64) {
	if len(v) == 0 {
		return
	}
	if peak := floats.Max(v); peak > 0 {
		floats.Scale(1/peak, v)
	}
}

// withinEpsilon reports whether every component of a differs from b by less than eps
func withinEpsilon(a, b []float64, eps float64) bool {
	return len(a) == 0 || floats.Distance(a, b, math.Inf(1)) < eps
}

func ones(n int) []float64 {
	v := make([]float64, n)
	floats.AddConst(1, v)
	return v
}

// Rank returns the indices of the k highest scores, best first. Ties keep index order.
func Rank(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k >= 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
