package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val       V
	expiresAt time.Time
}

// Store is a TTL cache with lazy expiry.
//
// Alongside the TTL-bound slot every key keeps a "last known good" copy that
// never expires. Callers consult it via GetStale only after a live refresh
// has already failed, so strict expiry still governs the normal read path.
type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	stale map[string]V
}

// Stats reports the live cache contents for diagnostics.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

func New[V any]() *Store[V] {
	return &Store[V]{
		items: make(map[string]entry[V]),
		stale: make(map[string]V),
	}
}

// Put stores val under key for ttl. A ttl <= 0 means the entry is already
// expired on the next Get; the last-known-good slot is written regardless.
func (s *Store[V]) Put(key string, val V, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = entry[V]{val: val, expiresAt: time.Now().Add(ttl)}
	s.stale[key] = val
	s.mu.Unlock()
}

// Get returns the cached value while it is fresh; expired entries are
// evicted on read.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if !time.Now().Before(e.expiresAt) {
		s.mu.Lock()
		// re-check under the write lock; a concurrent Put may have refreshed it
		if cur, ok2 := s.items[key]; ok2 && !time.Now().Before(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.val, true
}

// GetStale returns the last value ever stored under key, regardless of TTL.
func (s *Store[V]) GetStale(key string) (V, bool) {
	s.mu.RLock()
	v, ok := s.stale[key]
	s.mu.RUnlock()
	return v, ok
}

// Invalidate removes a single key, including its last-known-good copy.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.items, key)
	delete(s.stale, key)
	s.mu.Unlock()
}

// InvalidateAll clears the store.
func (s *Store[V]) InvalidateAll() {
	s.mu.Lock()
	s.items = make(map[string]entry[V])
	s.stale = make(map[string]V)
	s.mu.Unlock()
}

// Snapshot evicts expired entries and reports what is left, so Size never
// over-reports live entries.
func (s *Store[V]) Snapshot() Stats {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			continue
		}
		keys = append(keys, k)
	}
	return Stats{Size: len(keys), Keys: keys}
}
