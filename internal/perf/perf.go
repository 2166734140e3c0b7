// Package perf implements the performance monitor from spec.md §4.9: a TPS
// rolling window plus counters for packets, bytes and connections, exported
// through Prometheus and also sampled in-process by the tick scheduler.
package perf

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor holds every counter/gauge the scheduler and network layer update.
// Counters/atomics per spec.md §5's shared-resource table; the TPS history
// is a small ring buffer under its own mutex.
type Monitor struct {
	registry *prometheus.Registry

	packetsIn   prometheus.Counter
	packetsOut  prometheus.Counter
	bytesIn     prometheus.Counter
	bytesOut    prometheus.Counter
	connsTotal  prometheus.Counter
	connsActive prometheus.Gauge
	connsPlay   prometheus.Gauge
	tpsGauge    prometheus.Gauge

	mu      sync.Mutex
	tpsHist [tpsWindow]float64
	tpsIdx  int
	tpsLen  int

	currentTPS uint64 // atomic, bits of float64
}

const tpsWindow = 20 // one second of history at 20 TPS

// NewMonitor builds a Monitor and registers its metrics on its own registry
// (a private registry, not the global default, so multiple Server instances
// in tests don't collide).
func NewMonitor() *Monitor {
	m := &Monitor{registry: prometheus.NewRegistry()}

	m.packetsIn = prometheus.NewCounter(prometheus.CounterOpts{Name: "craftd_packets_in_total"})
	m.packetsOut = prometheus.NewCounter(prometheus.CounterOpts{Name: "craftd_packets_out_total"})
	m.bytesIn = prometheus.NewCounter(prometheus.CounterOpts{Name: "craftd_bytes_in_total"})
	m.bytesOut = prometheus.NewCounter(prometheus.CounterOpts{Name: "craftd_bytes_out_total"})
	m.connsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "craftd_connections_total"})
	m.connsActive = prometheus.NewGauge(prometheus.GaugeOpts{Name: "craftd_connections_active"})
	m.connsPlay = prometheus.NewGauge(prometheus.GaugeOpts{Name: "craftd_connections_play"})
	m.tpsGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "craftd_tps"})

	m.registry.MustRegister(m.packetsIn, m.packetsOut, m.bytesIn, m.bytesOut,
		m.connsTotal, m.connsActive, m.connsPlay, m.tpsGauge)

	atomic.StoreUint64(&m.currentTPS, float64bits(20))
	return m
}

// Registry exposes the Prometheus registry for an HTTP /metrics handler.
func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

func (m *Monitor) RecordPacketIn(bytes int) {
	m.packetsIn.Inc()
	m.bytesIn.Add(float64(bytes))
}

func (m *Monitor) RecordPacketOut(bytes int) {
	m.packetsOut.Inc()
	m.bytesOut.Add(float64(bytes))
}

func (m *Monitor) ConnectionAccepted() {
	m.connsTotal.Inc()
	m.connsActive.Inc()
}

func (m *Monitor) ConnectionClosed() {
	m.connsActive.Dec()
}

func (m *Monitor) EnteredPlay() {
	m.connsPlay.Inc()
}

func (m *Monitor) LeftPlay() {
	m.connsPlay.Dec()
}

// RecordTick appends one tick's duration-derived TPS sample, clamped to 20,
// per spec.md §4.9's formula current_tps = min(20, 1e6 / µs(elapsed)).
func (m *Monitor) RecordTick(elapsedMicros float64) {
	tps := 20.0
	if elapsedMicros > 0 {
		tps = 1e6 / elapsedMicros
		if tps > 20 {
			tps = 20
		}
	}

	m.mu.Lock()
	m.tpsHist[m.tpsIdx] = tps
	m.tpsIdx = (m.tpsIdx + 1) % tpsWindow
	if m.tpsLen < tpsWindow {
		m.tpsLen++
	}
	var sum float64
	for i := 0; i < m.tpsLen; i++ {
		sum += m.tpsHist[i]
	}
	avg := sum / float64(m.tpsLen)
	m.mu.Unlock()

	atomic.StoreUint64(&m.currentTPS, float64bits(avg))
	m.tpsGauge.Set(avg)
}

// CurrentTPS returns the rolling-average ticks-per-second.
func (m *Monitor) CurrentTPS() float64 {
	return float64frombits(atomic.LoadUint64(&m.currentTPS))
}
