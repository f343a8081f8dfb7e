package obs

import (
	"sync/atomic"
	"time"

	"mbo/internal/schema"
)

// Counters are the process-wide run counters. Both are reset when a run starts.
type Counters struct {
	Requests atomic.Int64
	Errors   atomic.Int64
}

// Reset zeroes both counters.
func (c *Counters) Reset() {
	if c == nil {
		return
	}
	c.Requests.Store(0)
	c.Errors.Store(0)
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	kindCounts     map[schema.Kind]*uint64
	unhandled      uint64
	rejected       uint64
	recovered      uint64
	transportFails uint64
	sinkDrops      uint64

	processLatency LatencyStats
	fetchLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	KindCounts     map[schema.Kind]uint64
	Unhandled      uint64
	Rejected       uint64
	Recovered      uint64
	TransportFails uint64
	SinkDrops      uint64
	ProcessLatency LatencySnapshot
	FetchLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	m := &Metrics{kindCounts: make(map[schema.Kind]*uint64)}
	for _, k := range schema.KnownKinds() {
		m.kindCounts[k] = new(uint64)
	}
	return m
}

// ObserveKind counts one accepted event of a routed kind. Unknown kinds go to
// the unhandled counter.
func (m *Metrics) ObserveKind(kind schema.Kind) {
	if m == nil {
		return
	}
	if c, ok := m.kindCounts[kind]; ok {
		atomic.AddUint64(c, 1)
		return
	}
	atomic.AddUint64(&m.unhandled, 1)
}

// IncRejected records a message that failed validation.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejected, 1)
}

// IncRecovered records a panic recovered at the processor boundary.
func (m *Metrics) IncRecovered() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.recovered, 1)
}

// IncTransportFailure records a failed fetch.
func (m *Metrics) IncTransportFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.transportFails, 1)
}

// IncSinkDrop records a point the sink could not accept.
func (m *Metrics) IncSinkDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sinkDrops, 1)
}

// ObserveProcess measures the time spent handling one message.
func (m *Metrics) ObserveProcess(d time.Duration) {
	if m == nil {
		return
	}
	m.processLatency.Observe(d)
}

// ObserveFetch measures one round trip of the real feed.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	kindCounts := make(map[schema.Kind]uint64)
	for k, c := range m.kindCounts {
		if v := atomic.LoadUint64(c); v > 0 {
			kindCounts[k] = v
		}
	}
	return Snapshot{
		KindCounts:     kindCounts,
		Unhandled:      atomic.LoadUint64(&m.unhandled),
		Rejected:       atomic.LoadUint64(&m.rejected),
		Recovered:      atomic.LoadUint64(&m.recovered),
		TransportFails: atomic.LoadUint64(&m.transportFails),
		SinkDrops:      atomic.LoadUint64(&m.sinkDrops),
		ProcessLatency: m.processLatency.Snapshot(),
		FetchLatency:   m.fetchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
