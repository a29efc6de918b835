package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/source"
)

// ErrInvalidConfig is returned when crawl options violate their preconditions
var ErrInvalidConfig = errors.New("invalid crawl configuration")

const (
	defaultFallbackWait = 15 * time.Minute
	defaultPageSize     = 200
)

// Options bounds the cost of a crawl
type Options struct {
	OutboundCap  int           // max outbound relations read per user
	InboundCap   int           // max inbound relations read per user
	NodeBudget   int           // total number of users to discover
	PageSize     int           // relations requested per page
	FallbackWait time.Duration // sleep used when the quota reset time is unknown
}

func (o *Options) validate() error {
	if o.NodeBudget < 1 {
		return fmt.Errorf("%w: node budget must be >= 1", ErrInvalidConfig)
	}
	if o.OutboundCap < 0 || o.InboundCap < 0 {
		return fmt.Errorf("%w: relation caps must be >= 0", ErrInvalidConfig)
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.FallbackWait <= 0 {
		o.FallbackWait = defaultFallbackWait
	}
	return nil
}

func (o Options) capFor(rel source.Relation) int {
	if rel == source.Inbound {
		return o.InboundCap
	}
	return o.OutboundCap
}

// Checkpointer persists snapshots of the crawl state into one of two rotating slots
type Checkpointer interface {
	Save(g *graph.Graph, slot int) error
}

// Recorder receives crawl progress events
type Recorder interface {
	NodeDiscovered()
	NodeExplored()
	EdgeRecorded()
	PagesFetched(n int)
	ScanAborted()
	ThrottleWait(d time.Duration)
	CheckpointFailed()
	FrontierSize(n int)
}

type nopRecorder struct{}

func (nopRecorder) NodeDiscovered()            {}
func (nopRecorder) NodeExplored()              {}
func (nopRecorder) EdgeRecorded()              {}
func (nopRecorder) PagesFetched(int)           {}
func (nopRecorder) ScanAborted()               {}
func (nopRecorder) ThrottleWait(time.Duration) {}
func (nopRecorder) CheckpointFailed()          {}
func (nopRecorder) FrontierSize(int)           {}

// Option customises a Crawler
type Option func(*Crawler)

// WithClock replaces the wall clock used for rate-limit waits
func WithClock(clock Clock) Option {
	return func(c *Crawler) { c.clock = clock }
}

// WithCheckpointer enables live checkpoints after every processed user
func WithCheckpointer(cp Checkpointer) Option {
	return func(c *Crawler) { c.checkpoints = cp }
}

// WithRecorder attaches a progress recorder
func WithRecorder(r Recorder) Option {
	return func(c *Crawler) { c.recorder = r }
}

// Crawler runs a bounded two-phase BFS over the relationship source.
// It is single-threaded: one relation page is in flight at any time.
type Crawler struct {
	opts        Options
	src         source.Source
	clock       Clock
	checkpoints Checkpointer
	recorder    Recorder

	frontier *Frontier
	graph    *graph.Graph
	saves    int
}

// NewCrawler creates a new crawler instance
func NewCrawler(src source.Source, opts Options, options ...Option) *Crawler {
	c := &Crawler{
		opts:     opts,
		src:      src,
		clock:    realClock{},
		recorder: nopRecorder{},
		frontier: NewFrontier(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Crawl discovers up to NodeBudget users starting from seed (an id or a handle).
// On context cancellation the graph built so far is returned with the context error.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*graph.Graph, error) {
	if err := c.opts.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(seed) == "" {
		return nil, fmt.Errorf("%w: seed user is required", ErrInvalidConfig)
	}

	seedUser, err := c.resolveSeed(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed %q: %w", seed, err)
	}

	c.graph = graph.New()
	c.frontier = NewFrontier()
	c.saves = 0

	c.graph.AddUser(seedUser.ID, seedUser.Record())
	c.frontier.Push(seedUser.ID)
	c.recorder.NodeDiscovered()
	c.recorder.FrontierSize(c.frontier.Size())

	// Phase 1: grow the graph until the budget is reached or the frontier runs dry
	growing := c.graph.Len() < c.opts.NodeBudget
	for growing {
		id, ok := c.frontier.Pop()
		if !ok {
			break
		}
		c.logSelected(id)

		// The node that used up the budget is not checkpointed
		exhausted, err := c.explore(ctx, id, true)
		c.finishNode(!exhausted)
		if err != nil {
			return c.graph, err
		}
		if exhausted {
			logrus.Infof("Node budget of %d reached", c.opts.NodeBudget)
			growing = false
		}
	}

	// Phase 2: close edges among the remaining boundary users without growing
	logrus.Infof("Boundary closure: %d users left in frontier", c.frontier.Size())
	for {
		id, ok := c.frontier.Pop()
		if !ok {
			break
		}
		c.logSelected(id)

		if _, err := c.explore(ctx, id, false); err != nil {
			c.finishNode(true)
			return c.graph, err
		}
		c.finishNode(true)
		logrus.Infof("Queue size: %d", c.frontier.Size())
	}

	nodes, edges := c.graph.GetStats()
	logrus.Infof("Crawl complete: %d users, %d recorded relations", nodes, edges)
	return c.graph, nil
}

// resolveSeed looks the seed up, waiting out throttling
func (c *Crawler) resolveSeed(ctx context.Context, seed string) (source.User, error) {
	for {
		u, err := c.src.GetUser(ctx, seed)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, source.ErrThrottled) {
			return source.User{}, err
		}
		logrus.Warnf("Seed lookup throttled, sleeping for %v", c.opts.FallbackWait)
		c.recorder.ThrottleWait(c.opts.FallbackWait)
		if err := c.clock.Sleep(ctx, c.opts.FallbackWait); err != nil {
			return source.User{}, err
		}
	}
}

// explore scans both relations of a user. In growth mode it reports whether
// the node budget was exhausted, which cuts the remaining scans short.
func (c *Crawler) explore(ctx context.Context, id graph.UserID, grow bool) (bool, error) {
	for _, rel := range source.Relations {
		exhausted, err := c.scan(ctx, id, rel, grow)
		if err != nil || exhausted {
			return exhausted, err
		}
	}
	return false, nil
}

// scan reads one relation of a user up to its cap and records the edges.
// Throttling is waited out and the scan resumes at the same cursor; any other
// source error abandons this scan only.
func (c *Crawler) scan(ctx context.Context, id graph.UserID, rel source.Relation, grow bool) (exhausted bool, err error) {
	seq := source.NewSequence(c.src, rel, id, c.opts.capFor(rel), c.opts.PageSize)
	found, used := 0, 0

	logrus.Debugf("Finding %s relations of %d", rel, id)
	defer func() {
		c.recorder.PagesFetched(seq.Pages())
		logrus.Infof("Found %d %s, used %d", found, rel, used)
	}()

	for {
		u, ok, nextErr := seq.Next(ctx)
		if nextErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			if errors.Is(nextErr, source.ErrThrottled) {
				if err := c.backoff(ctx, rel); err != nil {
					return false, err
				}
				continue
			}
			logrus.Warnf("Aborting %s scan of %d after %d relations: %v", rel, id, found, nextErr)
			c.recorder.ScanAborted()
			return false, nil
		}
		if !ok {
			return false, nil
		}

		found++
		if !grow && !c.graph.Has(u.ID) {
			continue
		}

		used++
		c.record(id, rel, u.ID)

		if grow && c.graph.AddUser(u.ID, u.Record()) {
			c.frontier.Push(u.ID)
			c.recorder.NodeDiscovered()
			c.recorder.FrontierSize(c.frontier.Size())
			if c.graph.Len() >= c.opts.NodeBudget {
				return true, nil
			}
		}
	}
}

func (c *Crawler) record(id graph.UserID, rel source.Relation, other graph.UserID) {
	var err error
	if rel == source.Inbound {
		err = c.graph.Adjacency.AppendInbound(id, other)
	} else {
		err = c.graph.Adjacency.AppendOutbound(id, other)
	}
	if err != nil {
		logrus.Warnf("Failed to record %s relation %d -> %d: %v", rel, id, other, err)
		return
	}
	c.recorder.EdgeRecorded()
}

// backoff sleeps until the relation quota resets, or for the fallback wait
// when the reset time cannot be obtained
func (c *Crawler) backoff(ctx context.Context, rel source.Relation) error {
	wait := c.opts.FallbackWait

	quota, err := c.src.RemainingQuota(ctx, rel)
	if err != nil {
		logrus.Warnf("Rate limit status for %s unavailable: %v", rel, err)
	} else {
		wait = quota.ResetAt.Sub(c.clock.Now()) + time.Second
		if wait < time.Second {
			wait = time.Second
		}
	}

	logrus.Infof("Rate limited on %s, sleeping for %v", rel, wait)
	c.recorder.ThrottleWait(wait)
	return c.clock.Sleep(ctx, wait)
}

// finishNode runs the per-node bookkeeping, including the live checkpoint
func (c *Crawler) finishNode(save bool) {
	c.recorder.NodeExplored()
	c.recorder.FrontierSize(c.frontier.Size())

	if !save || c.checkpoints == nil {
		return
	}
	slot := c.saves % 2
	c.saves++
	logrus.Debugf("Writing checkpoint slot %d", slot)
	if err := c.checkpoints.Save(c.graph, slot); err != nil {
		c.recorder.CheckpointFailed()
	}
}

func (c *Crawler) logSelected(id graph.UserID) {
	rec, _ := c.graph.Users.Get(id)
	logrus.Infof("Selected: %s, %s, %d", rec.ScreenName, rec.Name, id)
}
