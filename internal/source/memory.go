package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// PageRequest records a single ListRelations call served by a Memory source
type PageRequest struct {
	Relation Relation
	ID       graph.UserID
	Cursor   string
	Count    int
}

type pageKey struct {
	rel    Relation
	id     graph.UserID
	offset int
}

// Memory is a Source backed by an in-memory relationship table.
// Cursors are decimal offsets into the relation list.
type Memory struct {
	mu        sync.Mutex
	users     map[graph.UserID]User
	handles   map[string]graph.UserID
	relations map[Relation]map[graph.UserID][]graph.UserID

	throttles map[pageKey]int
	failures  map[pageKey]error
	quotas    map[Relation]Quota
	quotaErrs map[Relation]error
	requests  []PageRequest
}

// NewMemory creates an empty in-memory source
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[graph.UserID]User),
		handles: make(map[string]graph.UserID),
		relations: map[Relation]map[graph.UserID][]graph.UserID{
			Outbound: make(map[graph.UserID][]graph.UserID),
			Inbound:  make(map[graph.UserID][]graph.UserID),
		},
		throttles: make(map[pageKey]int),
		failures:  make(map[pageKey]error),
		quotas:    make(map[Relation]Quota),
		quotaErrs: make(map[Relation]error),
	}
}

// AddUser registers a user
func (m *Memory) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	if u.ScreenName != "" {
		m.handles[strings.ToLower(u.ScreenName)] = u.ID
	}
}

// SetRelations sets the ordered relation list of a user
func (m *Memory) SetRelations(rel Relation, id graph.UserID, ids ...graph.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations[rel][id] = append([]graph.UserID{}, ids...)
}

// Throttle makes the next n fetches of the page starting at offset fail with ErrThrottled
func (m *Memory) Throttle(rel Relation, id graph.UserID, offset, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttles[pageKey{rel, id, offset}] = n
}

// Fail makes every fetch of the page starting at offset fail with err
func (m *Memory) Fail(rel Relation, id graph.UserID, offset int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pageKey{rel, id, offset}] = err
}

// SetQuota sets the answer of RemainingQuota for rel. A non-nil err is returned instead.
func (m *Memory) SetQuota(rel Relation, q Quota, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas[rel] = q
	m.quotaErrs[rel] = err
}

// Requests returns every ListRelations call made so far
func (m *Memory) Requests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PageRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetUser resolves a numeric id or a case-insensitive handle
func (m *Memory) GetUser(ctx context.Context, ref string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if u, ok := m.users[graph.UserID(id)]; ok {
			return u, nil
		}
	}
	if id, ok := m.handles[strings.ToLower(strings.TrimPrefix(ref, "@"))]; ok {
		return m.users[id], nil
	}
	return User{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// ListRelations serves a page of the relation list
func (m *Memory) ListRelations(ctx context.Context, rel Relation, id graph.UserID, cursor string, count int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, PageRequest{Relation: rel, ID: id, Cursor: cursor, Count: count})

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = parsed
	}

	key := pageKey{rel, id, offset}
	if n := m.throttles[key]; n > 0 {
		m.throttles[key] = n - 1
		return Page{}, fmt.Errorf("%s page at %d for user %d: %w", rel, offset, id, ErrThrottled)
	}
	if err := m.failures[key]; err != nil {
		return Page{}, err
	}

	if _, ok := m.users[id]; !ok {
		return Page{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	all := m.relations[rel][id]
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + count
	if count <= 0 || end > len(all) {
		end = len(all)
	}

	page := Page{Users: make([]User, 0, end-offset)}
	for _, rid := range all[offset:end] {
		u, ok := m.users[rid]
		if !ok {
			u = User{ID: rid}
		}
		page.Users = append(page.Users, u)
	}
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// RemainingQuota returns the configured quota for rel
func (m *Memory) RemainingQuota(ctx context.Context, rel Relation) (Quota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.quotaErrs[rel]; err != nil {
		return Quota{}, err
	}
	return m.quotas[rel], nil
}
