package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	sessionsActive    prometheus.Gauge
	sessionsOpened    prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	messagesRejected  *prometheus.CounterVec
	replies           *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	upstreamRetries   *prometheus.CounterVec
	blocksSanitized   *prometheus.CounterVec
	inflightRequests  prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// A nil registerer uses the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_sessions_active",
				Help: "Number of connected chat sessions",
			},
		),
		sessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_sessions_opened_total",
				Help: "Total number of chat sessions opened",
			},
		),
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_received_total",
				Help: "Total number of user messages accepted",
			},
			[]string{"mode"},
		),
		messagesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_rejected_total",
				Help: "Total number of user messages rejected",
			},
			[]string{"code"},
		),
		replies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_replies_total",
				Help: "Total number of requests by terminal outcome",
			},
			[]string{"mode", "outcome"},
		),
		upstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_upstream_latency_seconds",
				Help:    "Upstream AI call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60, 120},
			},
			[]string{"mode"},
		),
		upstreamRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_upstream_retries_total",
				Help: "Total number of upstream AI call retries",
			},
			[]string{"mode"},
		),
		blocksSanitized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_reply_blocks_sanitized_total",
				Help: "Total number of reply blocks passed through a markup policy",
			},
			[]string{"kind"},
		),
		inflightRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_inflight_requests",
				Help: "Number of requests waiting for an upstream reply",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_queue_depth",
				Help: "Current depth of the job queue",
			},
		),
	}
}

// IncSessionsOpened increments the count of opened sessions
func (c *Collector) IncSessionsOpened() {
	c.sessionsOpened.Inc()
}

// SetActiveSessions sets the number of connected sessions
func (c *Collector) SetActiveSessions(count int) {
	c.sessionsActive.Set(float64(count))
}

// IncMessagesReceived increments the count of accepted messages for a mode
func (c *Collector) IncMessagesReceived(mode string) {
	c.messagesReceived.WithLabelValues(mode).Inc()
}

// IncMessagesRejected increments the count of rejected messages for an error code
func (c *Collector) IncMessagesRejected(code string) {
	c.messagesRejected.WithLabelValues(code).Inc()
}

// IncReplies increments the count of terminal outcomes (delivered, failed, dropped)
func (c *Collector) IncReplies(mode, outcome string) {
	c.replies.WithLabelValues(mode, outcome).Inc()
}

// ObserveUpstreamLatency records the latency of an upstream call
func (c *Collector) ObserveUpstreamLatency(mode string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddUpstreamRetries adds retries spent on an upstream call
func (c *Collector) AddUpstreamRetries(mode string, retries int) {
	if retries <= 0 {
		return
	}
	c.upstreamRetries.WithLabelValues(mode).Add(float64(retries))
}

// IncBlocksSanitized increments the count of sanitized reply blocks
func (c *Collector) IncBlocksSanitized(kind string) {
	c.blocksSanitized.WithLabelValues(kind).Inc()
}

// SetInflightRequests sets the number of requests waiting for a reply
func (c *Collector) SetInflightRequests(count int) {
	c.inflightRequests.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the current depth of the job queue
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
