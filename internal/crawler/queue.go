package crawler

import (
	"sync"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// Frontier implements the BFS queue of discovered but unexplored users.
// Every user can be enqueued at most once over the life of a crawl.
type Frontier struct {
	mu      sync.Mutex
	items   []graph.UserID
	visited map[graph.UserID]bool
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{
		items:   make([]graph.UserID, 0),
		visited: make(map[graph.UserID]bool),
	}
}

// Push adds a user to the back of the queue
// Returns true if added, false if the user was enqueued before
func (q *Frontier) Push(id graph.UserID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[id] {
		return false
	}

	q.visited[id] = true
	q.items = append(q.items, id)
	return true
}

// Pop removes and returns the first user of the queue
// Returns (0, false) if the queue is empty
func (q *Frontier) Pop() (graph.UserID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return 0, false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Size returns the current number of items in the queue
func (q *Frontier) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
