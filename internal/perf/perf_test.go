package perf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordTickClampsTo20(t *testing.T) {
	m := NewMonitor()
	m.RecordTick(1000) // 1000µs -> 1000 TPS, clamped to 20
	require.LessOrEqual(t, m.CurrentTPS(), 20.0)
}

func TestRecordTickAverages(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 20; i++ {
		m.RecordTick(50000) // 50ms -> 20 TPS
	}
	require.InDelta(t, 20.0, m.CurrentTPS(), 0.01)
}

func TestCounters(t *testing.T) {
	m := NewMonitor()
	m.ConnectionAccepted()
	m.RecordPacketIn(10)
	m.RecordPacketOut(20)
	m.EnteredPlay()
	m.LeftPlay()
	m.ConnectionClosed()

	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
