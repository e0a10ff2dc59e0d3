package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	// Routing
	eventsRouted  atomic.Uint64
	eventsIgnored atomic.Uint64

	// Decisions
	verdictsEvaluated atomic.Uint64
	verdictsEligible  atomic.Uint64
	verdictsMalformed atomic.Uint64

	// Orders
	ordersSubmitted atomic.Uint64
	ordersFailed    atomic.Uint64
	orderRetries    atomic.Uint64
	rateLimitBlocks atomic.Uint64

	// Latency tracking (submission round-trips)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	feedConnected atomic.Int32 // 1 = connected, 0 = not
}

// NewMetrics creates an empty recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordEvent records an event that reached at least one handler.
func (m *Metrics) RecordEvent() {
	if m == nil {
		return
	}
	m.eventsRouted.Add(1)
}

// RecordIgnored records an event the router dropped as a no-op.
func (m *Metrics) RecordIgnored() {
	if m == nil {
		return
	}
	m.eventsIgnored.Add(1)
}

// RecordVerdict records one rule evaluation.
func (m *Metrics) RecordVerdict(eligible, malformed bool) {
	if m == nil {
		return
	}
	m.verdictsEvaluated.Add(1)
	if eligible {
		m.verdictsEligible.Add(1)
	}
	if malformed {
		m.verdictsMalformed.Add(1)
	}
}

// RecordSubmission records one API round-trip and whether it was accepted.
func (m *Metrics) RecordSubmission(ok bool, latency time.Duration) {
	if m == nil {
		return
	}
	if ok {
		m.ordersSubmitted.Add(1)
	} else {
		m.ordersFailed.Add(1)
	}
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordRetry records a resubmission.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.orderRetries.Add(1)
}

// RecordRateLimitBlock records a call withheld or rejected because of a cool-down.
func (m *Metrics) RecordRateLimitBlock() {
	if m == nil {
		return
	}
	m.rateLimitBlocks.Add(1)
}

// SetFeedConnected sets the event feed connection state.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.feedConnected.Store(1)
	} else {
		m.feedConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsRouted      uint64    `json:"events_routed"`
	EventsIgnored     uint64    `json:"events_ignored"`
	VerdictsEvaluated uint64    `json:"verdicts_evaluated"`
	VerdictsEligible  uint64    `json:"verdicts_eligible"`
	VerdictsMalformed uint64    `json:"verdicts_malformed"`
	OrdersSubmitted   uint64    `json:"orders_submitted"`
	OrdersFailed      uint64    `json:"orders_failed"`
	OrderRetries      uint64    `json:"order_retries"`
	RateLimitBlocks   uint64    `json:"rate_limit_blocks"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	FeedConnected     bool      `json:"feed_connected"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{Timestamp: time.Now()}
	}

	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsRouted:      m.eventsRouted.Load(),
		EventsIgnored:     m.eventsIgnored.Load(),
		VerdictsEvaluated: m.verdictsEvaluated.Load(),
		VerdictsEligible:  m.verdictsEligible.Load(),
		VerdictsMalformed: m.verdictsMalformed.Load(),
		OrdersSubmitted:   m.ordersSubmitted.Load(),
		OrdersFailed:      m.ordersFailed.Load(),
		OrderRetries:      m.orderRetries.Load(),
		RateLimitBlocks:   m.rateLimitBlocks.Load(),
		AvgLatencyNs:      avgLatency,
		FeedConnected:     m.feedConnected.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsRouted.Store(0)
	m.eventsIgnored.Store(0)
	m.verdictsEvaluated.Store(0)
	m.verdictsEligible.Store(0)
	m.verdictsMalformed.Store(0)
	m.ordersSubmitted.Store(0)
	m.ordersFailed.Store(0)
	m.orderRetries.Store(0)
	m.rateLimitBlocks.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.feedConnected.Store(0)
}
