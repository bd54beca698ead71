package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// OperationType names a tracked operation.
type OperationType string

// Operations tracked across region access, world scans, and index
// maintenance.
const (
	OpOpenRegion    OperationType = "open_region"
	OpAssembleChunk OperationType = "assemble_chunk"
	OpDiffChunk     OperationType = "diff_chunk"
	OpIndexUpsert   OperationType = "index_upsert"
	OpIndexLookup   OperationType = "index_lookup"
)

var allOps = []OperationType{
	OpOpenRegion,
	OpAssembleChunk,
	OpDiffChunk,
	OpIndexUpsert,
	OpIndexLookup,
}

// LatencyTracker keeps running latency statistics in nanoseconds.
type LatencyTracker struct {
	count atomic.Uint64
	sum   atomic.Uint64
	min   atomic.Uint64 // zero until the first sample
	max   atomic.Uint64
}

func (t *LatencyTracker) record(ns uint64) {
	t.count.Add(1)
	t.sum.Add(ns)

	for {
		cur := t.max.Load()
		if ns <= cur || t.max.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := t.min.Load()
		if cur != 0 && ns >= cur {
			break
		}
		if t.min.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (t *LatencyTracker) summary() (count, avgNs, minNs, maxNs uint64) {
	count = t.count.Load()
	if count == 0 {
		return 0, 0, 0, 0
	}
	return count, t.sum.Load() / count, t.min.Load(), t.max.Load()
}

// opStats carries the counters for one operation type.
type opStats struct {
	count    atomic.Uint64
	lastUnix atomic.Int64 // UnixNano of the most recent occurrence
	latency  LatencyTracker
}

// AtomicCollector aggregates operation, error, and throughput counters
// with atomics so hot decode loops never block each other. The
// operation set is fixed at construction; error types are open-ended.
type AtomicCollector struct {
	ops            map[OperationType]*opStats // immutable after construction
	totalBytesRead atomic.Uint64

	errorsMu sync.RWMutex
	errors   map[string]*atomic.Uint64
}

// NewAtomicCollector creates a collector covering every OperationType.
func NewAtomicCollector() *AtomicCollector {
	ops := make(map[OperationType]*opStats, len(allOps))
	for _, op := range allOps {
		ops[op] = &opStats{}
	}
	return &AtomicCollector{
		ops:    ops,
		errors: make(map[string]*atomic.Uint64),
	}
}

// TrackOperation records one occurrence of op. Unknown operation types
// are dropped.
func (c *AtomicCollector) TrackOperation(op OperationType) {
	s, ok := c.ops[op]
	if !ok {
		return
	}
	s.count.Add(1)
	s.lastUnix.Store(time.Now().UnixNano())
}

// TrackOperationWithLatency records one occurrence of op together with
// its duration in nanoseconds.
func (c *AtomicCollector) TrackOperationWithLatency(op OperationType, latencyNs uint64) {
	s, ok := c.ops[op]
	if !ok {
		return
	}
	s.count.Add(1)
	s.lastUnix.Store(time.Now().UnixNano())
	s.latency.record(latencyNs)
}

// TrackError counts a failure by type.
func (c *AtomicCollector) TrackError(errorType string) {
	c.errorsMu.RLock()
	counter, ok := c.errors[errorType]
	c.errorsMu.RUnlock()

	if !ok {
		c.errorsMu.Lock()
		if counter, ok = c.errors[errorType]; !ok {
			counter = &atomic.Uint64{}
			c.errors[errorType] = counter
		}
		c.errorsMu.Unlock()
	}

	counter.Add(1)
}

// TrackBytesRead grows the running total of container bytes read.
func (c *AtomicCollector) TrackBytesRead(n uint64) {
	c.totalBytesRead.Add(n)
}

// OperationCount returns how many times op was recorded.
func (c *AtomicCollector) OperationCount(op OperationType) uint64 {
	s, ok := c.ops[op]
	if !ok {
		return 0
	}
	return s.count.Load()
}

// BytesRead returns the running total of container bytes read.
func (c *AtomicCollector) BytesRead() uint64 {
	return c.totalBytesRead.Load()
}

// ErrorCounts returns a copy of the per-type error counters.
func (c *AtomicCollector) ErrorCounts() map[string]uint64 {
	c.errorsMu.RLock()
	defer c.errorsMu.RUnlock()

	out := make(map[string]uint64, len(c.errors))
	for errType, counter := range c.errors {
		out[errType] = counter.Load()
	}
	return out
}

// LatencySummary returns latency statistics for op in nanoseconds.
// Everything is zero when no latency was recorded.
func (c *AtomicCollector) LatencySummary(op OperationType) (count, avgNs, minNs, maxNs uint64) {
	s, ok := c.ops[op]
	if !ok {
		return 0, 0, 0, 0
	}
	return s.latency.summary()
}

// GetStats flattens every counter into a display map. Keys follow the
// "<op>_ops", "last_<op>_time", and "<op>_latency" scheme, plus
// "total_bytes_read" and an "errors" sub-map.
func (c *AtomicCollector) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	for op, s := range c.ops {
		stats[string(op)+"_ops"] = s.count.Load()

		if last := s.lastUnix.Load(); last != 0 {
			stats["last_"+string(op)+"_time"] = last
		}

		count, avgNs, minNs, maxNs := s.latency.summary()
		if count == 0 {
			continue
		}
		latencyStats := map[string]interface{}{
			"count":  count,
			"avg_ns": avgNs,
		}
		if minNs != 0 {
			latencyStats["min_ns"] = minNs
		}
		if maxNs != 0 {
			latencyStats["max_ns"] = maxNs
		}
		stats[string(op)+"_latency"] = latencyStats
	}

	stats["total_bytes_read"] = c.totalBytesRead.Load()
	stats["errors"] = c.ErrorCounts()

	return stats
}
