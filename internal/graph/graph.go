package graph

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UserID identifies an account on the remote network
type UserID int64

// UserRecord holds the display metadata captured when a user is first seen
type UserRecord struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Adjacency holds the recorded neighbours of a single user, in observation order
type Adjacency struct {
	Outbound []UserID `json:"outbound"`
	Inbound  []UserID `json:"inbound"`
}

// UserMap is an insertion-ordered UserID -> UserRecord mapping
type UserMap struct {
	records *orderedmap.OrderedMap[UserID, UserRecord]
}

// NewUserMap creates an empty user mapping
func NewUserMap() *UserMap {
	return &UserMap{records: orderedmap.New[UserID, UserRecord]()}
}

// Put stores a record if the id is unknown. Returns false if it already existed
func (um *UserMap) Put(id UserID, rec UserRecord) bool {
	if _, exists := um.records.Get(id); exists {
		return false
	}
	um.records.Set(id, rec)
	return true
}

// Get returns the record for id
func (um *UserMap) Get(id UserID) (UserRecord, bool) {
	return um.records.Get(id)
}

// Has reports whether id is known
func (um *UserMap) Has(id UserID) bool {
	_, ok := um.records.Get(id)
	return ok
}

// Len returns the number of users
func (um *UserMap) Len() int {
	return um.records.Len()
}

// IDs returns the ids in insertion order
func (um *UserMap) IDs() []UserID {
	ids := make([]UserID, 0, um.records.Len())
	for pair := um.records.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// AdjacencyMap is an insertion-ordered UserID -> Adjacency mapping
type AdjacencyMap struct {
	entries *orderedmap.OrderedMap[UserID, *Adjacency]
}

// NewAdjacencyMap creates an empty adjacency mapping
func NewAdjacencyMap() *AdjacencyMap {
	return &AdjacencyMap{entries: orderedmap.New[UserID, *Adjacency]()}
}

// Ensure creates an empty entry for id if none exists. Returns false if it already existed
func (am *AdjacencyMap) Ensure(id UserID) bool {
	if _, exists := am.entries.Get(id); exists {
		return false
	}
	am.entries.Set(id, &Adjacency{Outbound: []UserID{}, Inbound: []UserID{}})
	return true
}

// Set replaces the entry for id, registering it if unknown.
// A known id keeps its original position.
func (am *AdjacencyMap) Set(id UserID, adj Adjacency) {
	am.entries.Set(id, &Adjacency{
		Outbound: append([]UserID{}, adj.Outbound...),
		Inbound:  append([]UserID{}, adj.Inbound...),
	})
}

// Get returns a copy of the entry for id
func (am *AdjacencyMap) Get(id UserID) (Adjacency, bool) {
	entry, ok := am.entries.Get(id)
	if !ok {
		return Adjacency{}, false
	}
	return Adjacency{
		Outbound: append([]UserID{}, entry.Outbound...),
		Inbound:  append([]UserID{}, entry.Inbound...),
	}, true
}

// Has reports whether id has an entry
func (am *AdjacencyMap) Has(id UserID) bool {
	_, ok := am.entries.Get(id)
	return ok
}

// AppendOutbound records that id lists to as outbound-related
func (am *AdjacencyMap) AppendOutbound(id, to UserID) error {
	entry, ok := am.entries.Get(id)
	if !ok {
		return fmt.Errorf("no adjacency entry for user %d", id)
	}
	entry.Outbound = append(entry.Outbound, to)
	return nil
}

// AppendInbound records that id lists from as inbound-related
func (am *AdjacencyMap) AppendInbound(id, from UserID) error {
	entry, ok := am.entries.Get(id)
	if !ok {
		return fmt.Errorf("no adjacency entry for user %d", id)
	}
	entry.Inbound = append(entry.Inbound, from)
	return nil
}

// Len returns the number of entries
func (am *AdjacencyMap) Len() int {
	return am.entries.Len()
}

// IDs returns the ids in insertion order
func (am *AdjacencyMap) IDs() []UserID {
	ids := make([]UserID, 0, am.entries.Len())
	for pair := am.entries.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// EdgeCount returns the total number of recorded outbound and inbound entries
func (am *AdjacencyMap) EdgeCount() int {
	total := 0
	for pair := am.entries.Oldest(); pair != nil; pair = pair.Next() {
		total += len(pair.Value.Outbound) + len(pair.Value.Inbound)
	}
	return total
}

// Graph is the crawl state: discovered users plus their adjacency entries.
// Both mappings always share the same key set.
type Graph struct {
	Users     *UserMap
	Adjacency *AdjacencyMap
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		Users:     NewUserMap(),
		Adjacency: NewAdjacencyMap(),
	}
}

// AddUser registers a newly discovered user with an empty adjacency entry.
// Returns false if the user was already known.
func (g *Graph) AddUser(id UserID, rec UserRecord) bool {
	if !g.Users.Put(id, rec) {
		return false
	}
	g.Adjacency.Ensure(id)
	return true
}

// Has reports whether id has been discovered
func (g *Graph) Has(id UserID) bool {
	return g.Users.Has(id)
}

// Len returns the number of discovered users
func (g *Graph) Len() int {
	return g.Users.Len()
}

// Validate checks that the user and adjacency key sets agree
func (g *Graph) Validate() error {
	if g.Users.Len() != g.Adjacency.Len() {
		return fmt.Errorf("graph has %d users but %d adjacency entries", g.Users.Len(), g.Adjacency.Len())
	}
	for _, id := range g.Users.IDs() {
		if !g.Adjacency.Has(id) {
			return fmt.Errorf("user %d has no adjacency entry", id)
		}
	}
	return nil
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (nodeCount, edgeCount int) {
	return g.Users.Len(), g.Adjacency.EdgeCount()
}
