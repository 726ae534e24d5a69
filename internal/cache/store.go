// Package cache provides the dispatch hub of the SDK: the cache manager
// that fans incoming DTOs out to every registered cache, the per-key
// lock manager the entity caches serialize merges with, the concurrent
// key-value store they keep items in, and the snapshot stores used for
// warm restarts.
package cache

import (
	"sync"
	"time"
)

// Store is a concurrent associative store safe for lock-free reads.
// Multi-field merges into stored values are made atomic by the callers'
// lock discipline, not by the store itself.
type Store interface {
	// Get returns the value for key, or false when absent or expired.
	Get(key string) (any, bool)

	// Set stores a value without expiration.
	Set(key string, value any)

	// SetWithTTL stores a value that expires ttl from now. When sliding
	// is true every successful Get pushes the expiration forward.
	SetWithTTL(key string, value any, ttl time.Duration, sliding bool)

	// Remove deletes the value for key, reporting whether it was present.
	Remove(key string) bool

	// Keys returns the keys of all unexpired entries.
	Keys() []string

	// Len returns the number of unexpired entries.
	Len() int
}

type storeEntry struct {
	value     any
	expiresAt time.Time
	ttl       time.Duration
	sliding   bool
}

func (e *storeEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is the in-process Store implementation. Expired entries
// are dropped lazily on access and enumeration.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*storeEntry)}
}

// Get returns the value for key, or false when absent or expired.
func (s *MemoryStore) Get(key string) (any, bool) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.expired(now) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry meanwhile.
		if cur, ok := s.entries[key]; ok && cur.expired(time.Now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	if e.sliding {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.sliding {
			cur.expiresAt = time.Now().Add(cur.ttl)
		}
		s.mu.Unlock()
	}

	return e.value, true
}

// Set stores a value without expiration.
func (s *MemoryStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &storeEntry{value: value}
}

// SetWithTTL stores a value with absolute or sliding expiration.
func (s *MemoryStore) SetWithTTL(key string, value any, ttl time.Duration, sliding bool) {
	e := &storeEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
		e.ttl = ttl
		e.sliding = sliding
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
}

// Remove deletes the value for key.
func (s *MemoryStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Keys returns the keys of all unexpired entries.
func (s *MemoryStore) Keys() []string {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of unexpired entries.
func (s *MemoryStore) Len() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
	return len(s.entries)
}
