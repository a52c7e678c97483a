package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memoryGuard is an in-process Guard for tests that don't need a running
// K/V store (grounded on the teacher's in-memory idempotency manager).
type memoryGuard struct {
	mu         sync.Mutex
	acquired   map[string]memoryEntry
	processed  map[string]memoryEntry
	defaultTTL time.Duration
}

// NewMemoryGuard returns a Guard backed by an in-process map.
func NewMemoryGuard(ttl time.Duration) Guard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &memoryGuard{
		acquired:   make(map[string]memoryEntry),
		processed:  make(map[string]memoryEntry),
		defaultTTL: ttl,
	}
}

func (m *memoryGuard) TryAcquire(_ context.Context, key, eventID string) (AcquireResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.acquired[key]; ok && time.Now().Before(entry.expiresAt) {
		return AcquireResult{Acquired: false, ExistingEventID: entry.value}, nil
	}

	m.acquired[key] = memoryEntry{value: eventID, expiresAt: time.Now().Add(m.defaultTTL)}
	return AcquireResult{Acquired: true}, nil
}

func (m *memoryGuard) IsProcessed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.processed[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.processed, key)
		return false, nil
	}
	return true, nil
}

func (m *memoryGuard) MarkProcessed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed[key] = memoryEntry{value: "1", expiresAt: time.Now().Add(m.defaultTTL)}
	return nil
}

func (m *memoryGuard) Peek(_ context.Context, key string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.acquired[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, "", nil
	}
	return true, entry.value, nil
}
