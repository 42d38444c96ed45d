// Package deckcache memoizes deck results under their request fingerprint.
package deckcache

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/deckray/models"
)

// Store is the fingerprint cache contract. Entries are written once and
// never mutated; after TTL they are lazily evicted on the next lookup and
// may be replaced by a fresh entry with a later timestamp.
type Store interface {
	Get(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error)
	PutIfAbsent(ctx context.Context, fingerprint string, result models.DeckResult, ttl time.Duration) (bool, error)
}

// Memory is the in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]models.CacheEntry), now: time.Now}
}

// Get returns a live entry, lazily evicting an expired one.
func (m *Memory) Get(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[fingerprint]
	m.mu.RUnlock()
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	if entry.Expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock: a fresh entry may have replaced it.
		if cur, ok := m.entries[fingerprint]; ok && cur.CreatedAt.Equal(entry.CreatedAt) {
			delete(m.entries, fingerprint)
		}
		m.mu.Unlock()
		return models.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// PutIfAbsent inserts the entry unless a live one already exists.
func (m *Memory) PutIfAbsent(ctx context.Context, fingerprint string, result models.DeckResult, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[fingerprint]; ok && !cur.Expired(m.now()) {
		return false, nil
	}
	m.entries[fingerprint] = models.CacheEntry{
		Fingerprint: fingerprint,
		Result:      result,
		CreatedAt:   m.now(),
		TTL:         ttl,
	}
	return true, nil
}
