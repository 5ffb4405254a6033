package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsRelayMetrics(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.IncSessionsOpened()
	c.IncSessionsOpened()
	c.SetActiveSessions(1)
	c.IncMessagesReceived("test-chat")
	c.IncMessagesRejected("RATE_LIMITED")
	c.IncReplies("test-chat", "delivered")
	c.AddUpstreamRetries("test-chat", 2)
	c.AddUpstreamRetries("test-chat", 0)
	c.IncBlocksSanitized("svg")
	c.SetInflightRequests(3)
	c.SetQueueDepth(4)
	c.RecordWorkerPoolStatus(5, 3, 0)
	c.ObserveUpstreamLatency("test-chat", 250*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.sessionsOpened))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.messagesReceived.WithLabelValues("test-chat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.messagesRejected.WithLabelValues("RATE_LIMITED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.replies.WithLabelValues("test-chat", "delivered")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.upstreamRetries.WithLabelValues("test-chat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.blocksSanitized.WithLabelValues("svg")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.inflightRequests))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 1, testutil.CollectAndCount(c.upstreamLatency))
}

func TestCollectorsUseSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
