package cache

import (
	"sync"
	"time"

	"devpulse/internal/models"
)

type entry struct {
	items     []models.Item
	createdAt time.Time
}

// Store is an in-memory TTL cache for normalized item lists. Entries past
// their TTL are never returned; a background sweep evicts them eventually.
// The sweep only ever deletes entries, so it is safe to interleave with
// reads and writes.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]entry
	ttl         time.Duration
	sweepTicker *time.Ticker
	stopChan    chan struct{}
	now         func() time.Time
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &Store{
		entries:  make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	s.sweepTicker = time.NewTicker(ttl)
	go s.sweep()

	return s
}

// Get returns the cached items for key, or ok=false if the key is absent
// or the entry has expired.
func (s *Store) Get(key string) ([]models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return nil, false
	}
	if s.now().Sub(e.createdAt) >= s.ttl {
		return nil, false
	}
	return e.items, true
}

func (s *Store) Set(key string, items []models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{items: items, createdAt: s.now()}
}

// Clear drops every entry. Used by the coordinator when the enabled
// source set changes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Store) sweep() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.evictExpired()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	for key, e := range s.entries {
		if e.createdAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

func (s *Store) Close() {
	s.sweepTicker.Stop()
	close(s.stopChan)
}
