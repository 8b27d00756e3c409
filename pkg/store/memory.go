package store

import (
	"context"
	"sync"
	"time"

	"github.com/hirevoice/interview-agent/pkg/interview"
)

// MemoryTranscriptStore is an in-process TranscriptStore, used in tests and
// when no database is configured.
type MemoryTranscriptStore struct {
	mu      sync.Mutex
	entries map[string][]Entry

	// AppendErr, when set, makes Append fail (for exercising the best-effort
	// persistence policy in tests).
	AppendErr error
}

// NewMemoryTranscriptStore creates an empty in-memory transcript store.
func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{entries: make(map[string][]Entry)}
}

func (m *MemoryTranscriptStore) Append(ctx context.Context, sessionID string, entry Entry) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = append(m.entries[sessionID], entry)
	return nil
}

func (m *MemoryTranscriptStore) List(ctx context.Context, sessionID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries[sessionID]))
	copy(out, m.entries[sessionID])
	return out, nil
}

func (m *MemoryTranscriptStore) Close() error { return nil }

type memoryStateEntry struct {
	state     interview.State
	expiresAt time.Time
}

// MemoryStateStore is an in-process StateStore with TTL semantics.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryStateEntry
	now    func() time.Time
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]memoryStateEntry),
		now:    time.Now,
	}
}

func (m *MemoryStateStore) Get(ctx context.Context, sessionID string) (*interview.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.states[sessionID]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.states, sessionID)
		return nil, nil
	}
	state := e.state
	return &state, nil
}

func (m *MemoryStateStore) Set(ctx context.Context, sessionID string, state *interview.State, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = memoryStateEntry{state: *state, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStateStore) Expire(ctx context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.states[sessionID]; ok {
		e.expiresAt = m.now().Add(ttl)
		m.states[sessionID] = e
	}
	return nil
}

func (m *MemoryStateStore) Close() error { return nil }
