// Package session owns the conversation-session cache for the agent backend.
//
// DESIGN: Sessions are keyed by an opaque (channel, clientId) pair and live
// in an injectable Store; the default implementation is a map behind a
// RWMutex. Expiry is a sliding TTL checked at lookup time — a background
// sweep only reclaims memory and is never load-bearing for correctness.
// The raw map is never exposed outside this package.
package session

import (
	"sync"
	"time"
)

// Key identifies one logical conversation.
type Key struct {
	Channel  string
	ClientID string
}

// String renders the key in its upstream display form.
func (k Key) String() string {
	return k.Channel + ":" + k.ClientID
}

// Record is one cached session. Owned exclusively by the Manager.
type Record struct {
	Key              Key
	BackendSessionID string
	CreatedAt        time.Time
	LastUsedAt       time.Time
}

// Store is the session cache abstraction.
type Store interface {
	Get(key Key) (Record, bool)
	Put(rec Record)
	Delete(key Key)
	// Sweep removes records whose LastUsedAt is before cutoff and returns
	// how many were dropped.
	Sweep(cutoff time.Time) int
}

// memoryStore is the default in-memory Store.
type memoryStore struct {
	mu   sync.RWMutex
	recs map[Key]Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{recs: make(map[Key]Record)}
}

func (s *memoryStore) Get(key Key) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[key]
	return rec, ok
}

func (s *memoryStore) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key] = rec
}

func (s *memoryStore) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, key)
}

func (s *memoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for key, rec := range s.recs {
		if rec.LastUsedAt.Before(cutoff) {
			delete(s.recs, key)
			dropped++
		}
	}
	return dropped
}
