package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()

	now := time.Now()
	require.NoError(t, store.Save(ctx, &ports.SessionRecord{SessionID: "b", ChatID: "chat-b", Mode: "test-chat", OpenedAt: now.Add(time.Second)}))
	require.NoError(t, store.Save(ctx, &ports.SessionRecord{SessionID: "a", ChatID: "chat-a", Mode: "test-chat", OpenedAt: now}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].SessionID)
	assert.Equal(t, "b", records[1].SessionID)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "chat-a", got.ChatID)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()

	record := &ports.SessionRecord{SessionID: "s1", ChatID: "chat-1"}
	require.NoError(t, store.Save(ctx, record))

	record.ChatID = "mutated"
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", got.ChatID)

	got.ChatID = "mutated again"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", again.ChatID)
}

func TestSessionStoreRejectsEmptyID(t *testing.T) {
	store := NewInMemorySessionStore()
	assert.Error(t, store.Save(context.Background(), &ports.SessionRecord{}))
	assert.Error(t, store.Save(context.Background(), nil))
}
