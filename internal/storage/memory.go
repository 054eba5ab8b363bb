package storage

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

type memoryEntry struct {
	count       int64
	value       []byte
	windowStart time.Time
	lastAt      time.Time
	expiresAt   time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// MemoryTier is the process-local last resort. It never fails and is shared by
// every coordinator that needs an in-process fallback.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) IncrementWithExpiry(_ context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) (models.WindowCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		e = &memoryEntry{windowStart: now, expiresAt: now.Add(ttl)}
		m.entries[key] = e
	} else if mode == models.WindowSliding {
		e.expiresAt = now.Add(ttl)
	}
	e.count++
	e.lastAt = now

	return models.WindowCounter{
		Count:       e.count,
		WindowStart: e.windowStart,
		LastAt:      e.lastAt,
		ExpiresAt:   e.expiresAt,
	}, nil
}

func (m *MemoryTier) Get(_ context.Context, key string, now time.Time) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.value == nil {
		return nil, false, nil
	}
	if e.expired(now) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryTier) GetAndDelete(_ context.Context, key string, now time.Time) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.value == nil {
		return nil, false, nil
	}
	delete(m.entries, key)
	if e.expired(now) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, now time.Time, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memoryEntry{value: v, windowStart: now, lastAt: now, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Purge drops every entry whose window has ended and reports how many were removed.
func (m *MemoryTier) Purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len is the number of live or not-yet-purged entries.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
