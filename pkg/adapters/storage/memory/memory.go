package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/chatrelay/pkg/ports"
)

// ErrNotFound is returned when a session record does not exist
var ErrNotFound = fmt.Errorf("session not found")

// InMemorySessionStore implements ports.SessionStore using an in-memory map
type InMemorySessionStore struct {
	sessions map[string]*ports.SessionRecord
	mu       sync.RWMutex
}

// NewInMemorySessionStore creates a new in-memory session store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]*ports.SessionRecord),
	}
}

// Save stores a copy of the record, replacing any previous one
func (s *InMemorySessionStore) Save(ctx context.Context, record *ports.SessionRecord) error {
	if record == nil || record.SessionID == "" {
		return fmt.Errorf("session record requires a session ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid callers mutating stored state
	recordCopy := *record
	s.sessions[record.SessionID] = &recordCopy
	return nil
}

// Get returns a copy of the record for a session
func (s *InMemorySessionStore) Get(ctx context.Context, sessionID string) (*ports.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	recordCopy := *record
	return &recordCopy, nil
}

// Delete removes the record for a session. Deleting a missing session is a no-op.
func (s *InMemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// List returns copies of all records ordered by open time
func (s *InMemorySessionStore) List(ctx context.Context) ([]*ports.SessionRecord, error) {
	s.mu.RLock()
	records := make([]*ports.SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].OpenedAt.Equal(records[j].OpenedAt) {
			return records[i].SessionID < records[j].SessionID
		}
		return records[i].OpenedAt.Before(records[j].OpenedAt)
	})

	return records, nil
}

// Count returns the number of stored sessions
func (s *InMemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions), nil
}
