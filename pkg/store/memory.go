package store

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV implementation for tests and single-node
// development runs. Expiry is checked lazily on read.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryKV creates an empty in-memory KV store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (m *MemoryKV) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Get returns the live value for a key.
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return "", false, nil
	}

	return entry.value, true, nil
}

// Set writes a value with a TTL.
func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

// SetNX writes a value only if the key is absent or expired.
func (m *MemoryKV) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && !entry.expired(m.now()) {
		return false, nil
	}

	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

// Delete removes a key.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryKV) Ping(context.Context) error {
	return nil
}

func (m *MemoryKV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// MemoryFlowStore is an in-process FlowStore implementation.
type MemoryFlowStore struct {
	mu     sync.Mutex
	states map[string]FlowState
}

// NewMemoryFlowStore creates an empty in-memory flow store.
func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{states: make(map[string]FlowState)}
}

// Get returns the state for a conversation key.
func (m *MemoryFlowStore) Get(_ context.Context, conversationKey string) (FlowState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[conversationKey]
	return state, ok, nil
}

// Upsert creates or replaces the state for its conversation key.
func (m *MemoryFlowStore) Upsert(_ context.Context, state FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.ConversationKey] = state
	return nil
}

// Delete removes the state for a conversation key.
func (m *MemoryFlowStore) Delete(_ context.Context, conversationKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, conversationKey)
	return nil
}
