// Package metrics implements the process-wide metrics sink the core
// emits counters and latencies to: dht.get.local_hits,
// dht.get.remote_lookups, dht.get.miss, dht.rpc.<op>.success|failure,
// and per-operation latency histograms.
package metrics

import (
	"sync"
	"time"
)

type latencyEntry struct {
	count    int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	hasValue bool
}

// Registry is a process-wide, mutex-guarded counter and latency sink.
// Any party recording a counter or latency — daemons, RPC handlers, the
// facade — does so under this single lock, matching the
// original implementation's MetricsRegistry.
type Registry struct {
	mu        sync.Mutex
	counters  map[string]int64
	latencies map[string]*latencyEntry
	startedAt time.Time
}

// NewRegistry builds an empty, ready-to-use registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset clears all counters and latencies and restarts the elapsed-time
// clock. Tests use this to get a clean slate between scenarios.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]int64)
	r.latencies = make(map[string]*latencyEntry)
	r.startedAt = time.Now()
}

// Increment adds n (default 1 via IncrementOne) to the named counter.
func (r *Registry) Increment(name string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += n
}

// IncrementOne is shorthand for Increment(name, 1).
func (r *Registry) IncrementOne(name string) {
	r.Increment(name, 1)
}

// RecordLatency appends one observation to the named latency histogram.
func (r *Registry) RecordLatency(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.latencies[name]
	if !ok {
		e = &latencyEntry{}
		r.latencies[name] = e
	}
	e.count++
	e.total += d
	if !e.hasValue || d < e.min {
		e.min = d
	}
	if !e.hasValue || d > e.max {
		e.max = d
	}
	e.hasValue = true
}

// LatencyStats is a point-in-time summary of one latency histogram.
type LatencyStats struct {
	Count            int64
	AvgSeconds       float64
	MinSeconds       float64
	MaxSeconds       float64
	ThroughputPerSec float64
}

// Snapshot is a consistent point-in-time copy of the whole registry.
type Snapshot struct {
	Counters       map[string]int64
	Latencies      map[string]LatencyStats
	ElapsedSeconds float64
}

// Snapshot copies out the current counters and latency stats without
// holding the lock during any caller processing.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.startedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}

	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}

	latencies := make(map[string]LatencyStats, len(r.latencies))
	for k, e := range r.latencies {
		stats := LatencyStats{Count: e.count}
		if e.count > 0 {
			stats.AvgSeconds = e.total.Seconds() / float64(e.count)
			stats.MinSeconds = e.min.Seconds()
			stats.MaxSeconds = e.max.Seconds()
			stats.ThroughputPerSec = float64(e.count) / elapsed
		}
		latencies[k] = stats
	}

	return Snapshot{Counters: counters, Latencies: latencies, ElapsedSeconds: elapsed}
}

// Names of the counters and latency series the core emits, per spec.
const (
	GetLocalHits    = "dht.get.local_hits"
	GetRemoteLookup = "dht.get.remote_lookups"
	GetMiss         = "dht.get.miss"

	RPCGetSuccess = "dht.rpc.get.success"
	RPCGetFailure = "dht.rpc.get.failure"
	RPCSetSuccess = "dht.rpc.set.success"
	RPCSetFailure = "dht.rpc.set.failure"

	LatencyRPCGet = "dht.rpc.get"
	LatencyRPCSet = "dht.rpc.set"
)
