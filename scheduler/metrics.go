package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/mastra-run/mastra-go/telemetry"
)

const latencyRingSize = 1000
const throughputWindow = 60 * time.Second

// Snapshot is a point-in-time read of the scheduler's latency and
// throughput metrics.
type Snapshot struct {
	P50Latency       time.Duration
	P99Latency       time.Duration
	ThroughputPerMin int
	QueueLength      int
	ActiveCount      int
}

// metricsTracker keeps a fixed-size ring of recent task latencies (for
// p50/p99) and a pruned slice of completion timestamps (for trailing
// throughput), and mirrors both into the ambient telemetry.Metrics sink.
type metricsTracker struct {
	mu          sync.Mutex
	ring        [latencyRingSize]time.Duration
	ringLen     int
	ringPos     int
	completions []time.Time
	metricsSink telemetry.Metrics
}

func newMetricsTracker(sink telemetry.Metrics) *metricsTracker {
	if sink == nil {
		sink = telemetry.NewNoopMetrics()
	}
	return &metricsTracker{metricsSink: sink}
}

func (m *metricsTracker) recordCompletion(taskType string, latency time.Duration, ok bool, now time.Time) {
	m.mu.Lock()
	m.ring[m.ringPos] = latency
	m.ringPos = (m.ringPos + 1) % latencyRingSize
	if m.ringLen < latencyRingSize {
		m.ringLen++
	}
	m.completions = append(m.completions, now)
	m.completions = pruneBefore(m.completions, now.Add(-throughputWindow))
	m.mu.Unlock()

	status := "success"
	if !ok {
		status = "failure"
	}
	m.metricsSink.IncCounter("scheduler.task.completed", 1, "type", taskType, "status", status)
	m.metricsSink.RecordTimer("scheduler.task.latency", latency, "type", taskType)
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func (m *metricsTracker) snapshot(queueLength, activeCount int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	latencies := make([]time.Duration, m.ringLen)
	copy(latencies, m.ring[:m.ringLen])
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	return Snapshot{
		P50Latency:       percentile(latencies, 0.50),
		P99Latency:       percentile(latencies, 0.99),
		ThroughputPerMin: len(m.completions),
		QueueLength:      queueLength,
		ActiveCount:      activeCount,
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
