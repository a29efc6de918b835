package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Summary is the crawl statistics exported on exit
type Summary struct {
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	NodesDiscovered    int       `json:"nodes_discovered"`
	NodesExplored      int       `json:"nodes_explored"`
	EdgesRecorded      int       `json:"edges_recorded"`
	PagesFetched       int       `json:"pages_fetched"`
	ScansAborted       int       `json:"scans_aborted"`
	ThrottleWaits      int       `json:"throttle_waits"`
	TotalWaitMs        int64     `json:"total_wait_ms"`
	CheckpointFailures int       `json:"checkpoint_failures"`
	FrontierSize       int       `json:"frontier_size"`
	HITSIterations     int       `json:"hits_iterations,omitempty"`
	HITSConverged      bool      `json:"hits_converged,omitempty"`
	TerminationReason  string    `json:"termination_reason"`
}

// Tracker holds and manages crawl metrics. It keeps a JSON summary and
// mirrors every event into Prometheus collectors.
type Tracker struct {
	mu   sync.Mutex
	data Summary

	nodesDiscovered    prometheus.Counter
	nodesExplored      prometheus.Counter
	edgesRecorded      prometheus.Counter
	pagesFetched       prometheus.Counter
	scansAborted       prometheus.Counter
	checkpointFailures prometheus.Counter
	throttleWait       prometheus.Histogram
	frontierSize       prometheus.Gauge
	hitsIterations     prometheus.Gauge
}

// NewTracker creates a tracker whose collectors are registered on reg.
// A nil reg keeps the collectors private.
func NewTracker(reg prometheus.Registerer) *Tracker {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Tracker{
		data: Summary{StartTime: time.Now()},

		nodesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_nodes_discovered_total",
			Help: "Users added to the graph",
		}),
		nodesExplored: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_nodes_explored_total",
			Help: "Users whose relationship lists were scanned",
		}),
		edgesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_edges_recorded_total",
			Help: "Adjacency entries appended",
		}),
		pagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_pages_fetched_total",
			Help: "Relationship pages fetched from the source",
		}),
		scansAborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_scans_aborted_total",
			Help: "Relationship scans abandoned after a non-throttling error",
		}),
		checkpointFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_checkpoint_failures_total",
			Help: "Live checkpoint saves that failed",
		}),
		throttleWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "weaver_throttle_wait_seconds",
			Help:    "Time slept waiting for a rate-limit window to reset",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		}),
		frontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weaver_frontier_size",
			Help: "Users waiting in the crawl frontier",
		}),
		hitsIterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weaver_hits_iterations",
			Help: "Iterations used by the last HITS run",
		}),
	}
}

// NodeDiscovered increments the discovered nodes counter
func (t *Tracker) NodeDiscovered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesDiscovered++
	t.nodesDiscovered.Inc()
}

// NodeExplored increments the explored nodes counter
func (t *Tracker) NodeExplored() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesExplored++
	t.nodesExplored.Inc()
}

// EdgeRecorded increments the edges counter
func (t *Tracker) EdgeRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded++
	t.edgesRecorded.Inc()
}

// PagesFetched adds n successful page fetches
func (t *Tracker) PagesFetched(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched += n
	t.pagesFetched.Add(float64(n))
}

// ScanAborted increments the aborted scans counter
func (t *Tracker) ScanAborted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ScansAborted++
	t.scansAborted.Inc()
}

// ThrottleWait records one rate-limit sleep
func (t *Tracker) ThrottleWait(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ThrottleWaits++
	t.data.TotalWaitMs += d.Milliseconds()
	t.throttleWait.Observe(d.Seconds())
}

// CheckpointFailed increments the checkpoint failures counter
func (t *Tracker) CheckpointFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.CheckpointFailures++
	t.checkpointFailures.Inc()
}

// FrontierSize records the current queue length
func (t *Tracker) FrontierSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.FrontierSize = n
	t.frontierSize.Set(float64(n))
}

// ScoringDone records the outcome of a HITS run
func (t *Tracker) ScoringDone(iterations int, converged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.HITSIterations = iterations
	t.data.HITSConverged = converged
	t.hitsIterations.Set(float64(iterations))
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Users: %d discovered, %d explored | Edges: %d | Pages: %d | Queue: %d | Throttled: %d (%s) | Aborted scans: %d",
		t.data.NodesDiscovered,
		t.data.NodesExplored,
		t.data.EdgesRecorded,
		t.data.PagesFetched,
		t.data.FrontierSize,
		t.data.ThrottleWaits,
		time.Duration(t.data.TotalWaitMs)*time.Millisecond,
		t.data.ScansAborted,
	)
}
