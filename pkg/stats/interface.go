package stats

// Collector is the tracking surface readers, scanners, and the index
// accept. Implementations must be safe for concurrent use.
type Collector interface {
	// TrackOperation records one occurrence of op.
	TrackOperation(op OperationType)

	// TrackOperationWithLatency records one occurrence of op together
	// with its duration in nanoseconds.
	TrackOperationWithLatency(op OperationType, latencyNs uint64)

	// TrackError counts a failure by type.
	TrackError(errorType string)

	// TrackBytesRead grows the running total of container bytes read.
	TrackBytesRead(n uint64)
}

// Provider exposes collected statistics as a flat display map.
type Provider interface {
	GetStats() map[string]interface{}
}

var (
	_ Collector = (*AtomicCollector)(nil)
	_ Provider  = (*AtomicCollector)(nil)
)
