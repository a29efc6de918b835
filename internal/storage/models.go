package storage

import "github.com/alvmarrod/hub-weaver/internal/graph"

// relation column values of the adjacency table
const (
	relationOutbound = "outbound"
	relationInbound  = "inbound"
)

// Score is one user's HITS result as persisted after scoring
type Score struct {
	UserID        graph.UserID
	ScreenName    string
	Hub           float64
	Authority     float64
	HubRank       int
	AuthorityRank int
}
