package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersReceived  atomic.Uint64
	ordersMatched   atomic.Uint64
	ordersRejected  atomic.Uint64
	ordersCancelled atomic.Uint64
	replaySkips     atomic.Uint64

	// Latency tracking (submit command, enqueue to completion)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordReceived counts an accepted order submission.
func (m *Metrics) RecordReceived() {
	m.ordersReceived.Add(1)
}

// RecordMatch counts one executed trade.
func (m *Metrics) RecordMatch() {
	m.ordersMatched.Add(1)
}

// RecordRejected counts a boundary validation rejection.
func (m *Metrics) RecordRejected() {
	m.ordersRejected.Add(1)
}

// RecordCancel counts an effective cancellation.
func (m *Metrics) RecordCancel() {
	m.ordersCancelled.Add(1)
}

// RecordReplaySkip counts an event skipped during replay. A non-zero value
// means reconstructed state may diverge from history; operators should
// inspect the log.
func (m *Metrics) RecordReplaySkip() {
	m.replaySkips.Add(1)
}

// RecordLatency records one command's processing latency.
func (m *Metrics) RecordLatency(latencyNs int64) {
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// IncrementStreams increments active stream subscribers by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements active stream subscribers by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersReceived  uint64
	OrdersMatched   uint64
	OrdersRejected  uint64
	OrdersCancelled uint64
	ReplaySkips     uint64
	AvgLatencyNs    int64
	ActiveStreams   int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersReceived:  m.ordersReceived.Load(),
		OrdersMatched:   m.ordersMatched.Load(),
		OrdersRejected:  m.ordersRejected.Load(),
		OrdersCancelled: m.ordersCancelled.Load(),
		ReplaySkips:     m.replaySkips.Load(),
		AvgLatencyNs:    avgLatency,
		ActiveStreams:   m.activeStreams.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersReceived.Store(0)
	m.ordersMatched.Store(0)
	m.ordersRejected.Store(0)
	m.ordersCancelled.Store(0)
	m.replaySkips.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeStreams.Store(0)
}
