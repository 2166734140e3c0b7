package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	p := NewPool(4, 16)
	defer p.Shutdown()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		p.Submit(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete in time")
	}
	require.Equal(t, int64(200), atomic.LoadInt64(&count))
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Shutdown()

	var ran int64
	p.Submit(func() { panic("boom") })
	p.Submit(func() { atomic.AddInt64(&ran, 1) })

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestPoolShutdownDrains(t *testing.T) {
	p := NewPool(1, 16)
	var count int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	p.Shutdown()
	require.Equal(t, int64(10), atomic.LoadInt64(&count))
}
