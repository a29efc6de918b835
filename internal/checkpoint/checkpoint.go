package checkpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/jsonfile"
)

// UserEntry is one element of the user artifact
type UserEntry struct {
	ID         graph.UserID `json:"id"`
	Name       string       `json:"name"`
	ScreenName string       `json:"screen_name"`
}

// AdjacencyEntry is one element of the adjacency artifact
type AdjacencyEntry struct {
	ID       graph.UserID   `json:"id"`
	Outbound []graph.UserID `json:"outbound"`
	Inbound  []graph.UserID `json:"inbound"`
}

// Writer saves crawl snapshots into two rotating slots. Slot n of a prefix p
// lives at p followed by n, e.g. "data/temp/users_0".
type Writer struct {
	usersPrefix     string
	adjacencyPrefix string
}

// NewWriter creates a checkpoint writer. An empty prefix disables that artifact.
func NewWriter(usersPrefix, adjacencyPrefix string) *Writer {
	return &Writer{
		usersPrefix:     usersPrefix,
		adjacencyPrefix: adjacencyPrefix,
	}
}

// Save writes the snapshot for slot. Failures are logged and returned, the
// other slot is never touched.
func (w *Writer) Save(g *graph.Graph, slot int) error {
	return SaveGraph(g, SlotPath(w.usersPrefix, slot), SlotPath(w.adjacencyPrefix, slot))
}

// SlotPath returns the path of a checkpoint slot, or "" for an empty prefix
func SlotPath(prefix string, slot int) string {
	if prefix == "" {
		return ""
	}
	return prefix + strconv.Itoa(slot)
}

// SaveGraph writes the user and adjacency artifacts. Either path may be empty
// to skip that artifact. A failure on one artifact does not prevent the other.
func SaveGraph(g *graph.Graph, usersPath, adjacencyPath string) error {
	var errs []error

	if usersPath != "" {
		if err := WriteUsers(usersPath, g.Users); err != nil {
			logrus.Warnf("Failed to save users to %s: %v", usersPath, err)
			errs = append(errs, err)
		}
	}

	if adjacencyPath != "" {
		if err := WriteAdjacency(adjacencyPath, g.Adjacency); err != nil {
			logrus.Warnf("Failed to save adjacency to %s: %v", adjacencyPath, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WriteUsers writes the user artifact in discovery order
func WriteUsers(path string, users *graph.UserMap) error {
	entries := make([]UserEntry, 0, users.Len())
	for _, id := range users.IDs() {
		rec, _ := users.Get(id)
		entries = append(entries, UserEntry{ID: id, Name: rec.Name, ScreenName: rec.ScreenName})
	}
	return jsonfile.Write(path, entries)
}

// WriteAdjacency writes the adjacency artifact in discovery order
func WriteAdjacency(path string, adjacency *graph.AdjacencyMap) error {
	entries := make([]AdjacencyEntry, 0, adjacency.Len())
	for _, id := range adjacency.IDs() {
		adj, _ := adjacency.Get(id)
		entries = append(entries, AdjacencyEntry{ID: id, Outbound: adj.Outbound, Inbound: adj.Inbound})
	}
	return jsonfile.Write(path, entries)
}

// ReadUsers loads a user artifact
func ReadUsers(path string) (*graph.UserMap, error) {
	var entries []UserEntry
	if err := jsonfile.Read(path, &entries); err != nil {
		return nil, err
	}

	users := graph.NewUserMap()
	for _, e := range entries {
		if !users.Put(e.ID, graph.UserRecord{Name: e.Name, ScreenName: e.ScreenName}) {
			return nil, fmt.Errorf("duplicate user %d in %s", e.ID, path)
		}
	}
	return users, nil
}

// ReadAdjacency loads an adjacency artifact
func ReadAdjacency(path string) (*graph.AdjacencyMap, error) {
	var entries []AdjacencyEntry
	if err := jsonfile.Read(path, &entries); err != nil {
		return nil, err
	}

	adjacency := graph.NewAdjacencyMap()
	for _, e := range entries {
		if adjacency.Has(e.ID) {
			return nil, fmt.Errorf("duplicate adjacency entry %d in %s", e.ID, path)
		}
		adjacency.Set(e.ID, graph.Adjacency{Outbound: e.Outbound, Inbound: e.Inbound})
	}
	return adjacency, nil
}

// LoadGraph loads both artifacts and checks that their key sets agree
func LoadGraph(usersPath, adjacencyPath string) (*graph.Graph, error) {
	users, err := ReadUsers(usersPath)
	if err != nil {
		return nil, err
	}
	adjacency, err := ReadAdjacency(adjacencyPath)
	if err != nil {
		return nil, err
	}

	g := &graph.Graph{Users: users, Adjacency: adjacency}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent artifacts: %w", err)
	}
	return g, nil
}
