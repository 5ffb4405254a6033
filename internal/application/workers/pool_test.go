package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	promadapter "github.com/aescanero/chatrelay/pkg/adapters/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(size, queueSize int) *Pool {
	return NewPool(size, queueSize, promadapter.NewCollector(prometheus.NewRegistry()), zap.NewNop(), time.Hour)
}

func TestPoolRunsJobs(t *testing.T) {
	pool := newTestPool(2, 4)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	var ran int32
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Enqueue(Job{ID: "job", Run: func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
		}}))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ran) == 4 }, time.Second, 5*time.Millisecond)
}

func TestEnqueueFailsWhenQueueIsFull(t *testing.T) {
	pool := newTestPool(1, 1)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Enqueue(Job{ID: "blocker", Run: func(ctx context.Context) {
		close(started)
		<-release
	}}))
	<-started

	require.NoError(t, pool.Enqueue(Job{ID: "queued", Run: func(ctx context.Context) {}}))
	assert.ErrorIs(t, pool.Enqueue(Job{ID: "overflow", Run: func(ctx context.Context) {}}), ErrQueueFull)
	assert.Equal(t, 1, pool.QueueDepth())

	status := pool.Health().GetStatus()
	assert.Equal(t, 1, status.BusyWorkers)
	assert.Equal(t, 1, status.QueueCapacity)
	assert.True(t, status.Healthy)
	assert.True(t, status.Saturated)

	close(release)
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	pool := newTestPool(1, 1)
	require.NoError(t, pool.Start())

	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Enqueue(Job{ID: "long", Run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	select {
	case <-cancelled:
	default:
		t.Fatal("running job was not cancelled")
	}

	assert.ErrorIs(t, pool.Enqueue(Job{ID: "late", Run: func(ctx context.Context) {}}), ErrPoolStopped)
	assert.False(t, pool.Health().IsHealthy())
	assert.NoError(t, pool.Shutdown(context.Background()))
}

func TestWorkerSurvivesPanics(t *testing.T) {
	pool := newTestPool(1, 2)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	require.NoError(t, pool.Enqueue(Job{ID: "panics", Run: func(ctx context.Context) { panic("boom") }}))

	done := make(chan struct{})
	require.NoError(t, pool.Enqueue(Job{ID: "after", Run: func(ctx context.Context) { close(done) }}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestHealthMonitorLifecycle(t *testing.T) {
	pool := newTestPool(1, 4)
	monitor := NewHealthMonitor(pool, 5*time.Millisecond, zap.NewNop())

	monitor.Stop()
	monitor.Start()
	monitor.Stop()

	running := NewHealthMonitor(pool, 5*time.Millisecond, zap.NewNop())
	running.Start()
	running.Start()
	time.Sleep(20 * time.Millisecond)
	running.Stop()
	running.Stop()

	status := running.GetStatus()
	assert.Equal(t, 1, status.TotalWorkers)
	assert.Equal(t, 4, status.QueueCapacity)
	assert.False(t, status.Saturated)
}
