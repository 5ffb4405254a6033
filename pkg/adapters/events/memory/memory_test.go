package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := &recorder{}, &recorder{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicSessions, first.handle))
	require.NoError(t, bus.Subscribe(ctx, domain.TopicSessions, second.handle))

	event := domain.Event{ID: "e1", Type: domain.EventTypeSessionOpened, SessionID: "s1"}
	require.NoError(t, bus.Publish(ctx, domain.TopicSessions, event))

	assert.Eventually(t, func() bool { return first.count() == 1 && second.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicMessages, rec.handle))

	const total = 100
	for i := 0; i < total; i++ {
		require.NoError(t, bus.Publish(ctx, domain.TopicMessages, domain.Event{ID: strconv.Itoa(i)}))
	}

	require.Eventually(t, func() bool { return rec.count() == total }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, event := range rec.events {
		assert.Equal(t, strconv.Itoa(i), event.ID)
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicMessages, rec.handle))
	require.NoError(t, bus.Publish(ctx, domain.TopicSessions, domain.Event{ID: "e1"}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestCancelledSubscriptionIsRemoved(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	keep, keepCancel := context.WithCancel(context.Background())
	defer keepCancel()
	drop, dropCancel := context.WithCancel(context.Background())

	kept, dropped := &recorder{}, &recorder{}
	require.NoError(t, bus.Subscribe(keep, domain.TopicSessions, kept.handle))
	require.NoError(t, bus.Subscribe(drop, domain.TopicSessions, dropped.handle))
	require.Equal(t, 2, bus.Subscribers(domain.TopicSessions))

	dropCancel()
	require.Eventually(t, func() bool { return bus.Subscribers(domain.TopicSessions) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.TopicSessions, domain.Event{ID: "e2"}))
	assert.Eventually(t, func() bool { return kept.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, dropped.count())
}

func TestCloseDropsSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicSessions, (&recorder{}).handle))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.Subscribers(domain.TopicSessions))
	assert.NoError(t, bus.Publish(context.Background(), domain.TopicSessions, domain.Event{ID: "late"}))
}
