package hits

import (
	"fmt"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/jsonfile"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

// History is the per-iteration score trajectory, exported for plotting
type History struct {
	Users       []graph.UserID `json:"users"`
	Iterations  int            `json:"iterations"`
	Converged   bool           `json:"converged"`
	Hubs        [][]float64    `json:"hubs"`
	Authorities [][]float64    `json:"authorities"`
}

// WriteHistory saves the trajectory of res, with columns labelled by the index map
func WriteHistory(path string, res *Result, index *matrix.IndexMap) error {
	h := History{
		Users:       index.IDs(),
		Iterations:  res.Iterations,
		Converged:   res.Converged,
		Hubs:        res.HubHistory,
		Authorities: res.AuthorityHistory,
	}

	if err := jsonfile.Write(path, h); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
