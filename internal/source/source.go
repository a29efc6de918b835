package source

import (
	"context"
	"errors"
	"time"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// ErrThrottled signals that the remote quota is exhausted and the caller must back off
var ErrThrottled = errors.New("source: throttled")

// ErrNotFound signals that a user reference could not be resolved
var ErrNotFound = errors.New("source: user not found")

// Relation selects one of the two relationship lists of a user
type Relation int

const (
	// Outbound lists the accounts a user follows
	Outbound Relation = iota
	// Inbound lists the accounts following a user
	Inbound
)

func (r Relation) String() string {
	switch r {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return "unknown"
	}
}

// Relations lists both relation kinds in scan order
var Relations = []Relation{Outbound, Inbound}

// User is a user record as returned by the remote network
type User struct {
	ID         graph.UserID `json:"id"`
	Name       string       `json:"name"`
	ScreenName string       `json:"screen_name"`
}

// Record converts the user into the metadata stored in the crawl state
func (u User) Record() graph.UserRecord {
	return graph.UserRecord{Name: u.Name, ScreenName: u.ScreenName}
}

// Page is one page of a relationship listing. An empty NextCursor marks the last page.
type Page struct {
	Users      []User `json:"users"`
	NextCursor string `json:"next_cursor"`
}

// Quota describes the remaining request allowance for a relation endpoint
type Quota struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Source is the remote social network. Every call may fail with ErrThrottled
// (back off and retry) or with any other error (abandon the current scan).
type Source interface {
	// GetUser resolves a numeric id or a handle
	GetUser(ctx context.Context, ref string) (User, error)
	// ListRelations fetches up to count related users starting at cursor ("" for the first page)
	ListRelations(ctx context.Context, rel Relation, id graph.UserID, cursor string, count int) (Page, error)
	// RemainingQuota reports the allowance left for the relation endpoint
	RemainingQuota(ctx context.Context, rel Relation) (Quota, error)
}
