package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultHealthCheckInterval = 30 * time.Second

// Queue usage at or above this fraction is reported as saturated; new
// messages are about to be rejected with QUEUE_FULL.
const saturationThreshold = 0.75

// HealthMonitor periodically samples the pool, exports the sample as
// metrics and answers readiness checks from the HTTP and gRPC servers.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// HealthStatus is a point-in-time view of the worker pool
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueueDepth     int       `json:"queue_depth"`
	QueueCapacity  int       `json:"queue_capacity"`
	Saturated      bool      `json:"saturated"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a monitor sampling the pool every interval
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins periodic sampling. Calling it again has no effect.
func (h *HealthMonitor) Start() {
	h.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.run(ctx)
	})
}

// Stop ends sampling and waits for the sampler to exit
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() {
		// A monitor stopped before Start never runs
		h.startOnce.Do(func() {})
		if h.cancel != nil {
			h.cancel()
			<-h.done
		}
	})
}

func (h *HealthMonitor) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.record(h.GetStatus())
		}
	}
}

// record exports a sample and logs it, warning when relayed messages are
// at risk of rejection
func (h *HealthMonitor) record(status *HealthStatus) {
	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)
	h.pool.metrics.SetQueueDepth(status.QueueDepth)

	fields := []zap.Field{
		zap.Int("busy", status.BusyWorkers),
		zap.Int("total", status.TotalWorkers),
		zap.Int("queue_depth", status.QueueDepth),
		zap.Int("queue_capacity", status.QueueCapacity),
	}

	switch {
	case !status.Healthy:
		h.logger.Warn("worker pool is unhealthy", append(fields, zap.Int("stopped", status.StoppedWorkers))...)
	case status.Saturated:
		h.logger.Warn("upstream job queue is saturated", fields...)
	default:
		h.logger.Debug("worker pool health check", fields...)
	}
}

// GetStatus samples the pool. It is healthy while none of its workers
// has stopped.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{
		QueueDepth:    h.pool.QueueDepth(),
		QueueCapacity: cap(h.pool.queue),
		Timestamp:     time.Now(),
	}

	for _, workerStatus := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch workerStatus {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}

	status.Healthy = status.StoppedWorkers == 0
	status.Saturated = status.BusyWorkers == status.TotalWorkers &&
		float64(status.QueueDepth) >= saturationThreshold*float64(status.QueueCapacity)

	return status
}

// IsHealthy reports whether the pool can accept relayed messages
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
