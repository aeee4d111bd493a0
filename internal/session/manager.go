// Session lifecycle: ABSENT -> ACTIVE -> EXPIRED|INVALIDATED -> ABSENT.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/config"
	"github.com/ocigw/genai-gateway/internal/upstream"
)

// EndpointRef routes session operations to one upstream agent endpoint.
type EndpointRef struct {
	Region     string
	EndpointID string
}

// Backend is the slice of the upstream client the session layer needs.
type Backend interface {
	CreateSession(ctx context.Context, ref EndpointRef, displayName string, idleTimeout time.Duration) (string, error)
	Chat(ctx context.Context, ref EndpointRef, sessionID, userMessage string) (*upstream.AgentReply, error)
}

// Session is the result of a GetOrCreate lookup.
type Session struct {
	ID     string
	Key    Key
	Reused bool
}

// Manager owns the session cache. All reads and mutations for a given key
// are serialized through a per-key lock so two concurrent requests cannot
// both decide to create a session (duplicate-session race).
type Manager struct {
	store   Store
	backend Backend
	ttl     time.Duration

	mu    sync.Mutex
	locks map[Key]*keyLock

	// now is injectable for TTL tests.
	now func() time.Time
}

// keyLock is a reference-counted per-key mutex. The table entry is removed
// once no request holds or waits for it, so the lock table tracks in-flight
// keys only and never grows with the total key population.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a manager with the given sliding TTL and starts the
// background sweep.
func NewManager(store Store, backend Backend, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}
	m := &Manager{
		store:   store,
		backend: backend,
		ttl:     ttl,
		locks:   make(map[Key]*keyLock),
		now:     time.Now,
	}
	go m.sweepLoop()
	return m
}

// GetOrCreate returns the active session for (channel, clientId), reusing it
// within the sliding TTL (refreshing lastUsedAt, no upstream call) or
// creating a fresh upstream session when absent or expired.
func (m *Manager) GetOrCreate(ctx context.Context, ref EndpointRef, channel, clientID string) (Session, error) {
	key := Key{Channel: channel, ClientID: clientID}

	unlock := m.lockKey(key)
	defer unlock()

	now := m.now()
	if rec, ok := m.store.Get(key); ok && now.Sub(rec.LastUsedAt) < m.ttl {
		rec.LastUsedAt = now
		m.store.Put(rec)
		return Session{ID: rec.BackendSessionID, Key: key, Reused: true}, nil
	}

	id, err := m.backend.CreateSession(ctx, ref, key.String(), m.ttl)
	if err != nil {
		return Session{}, err
	}

	m.store.Put(Record{
		Key:              key,
		BackendSessionID: id,
		CreatedAt:        now,
		LastUsedAt:       now,
	})
	log.Info().Str("session_key", key.String()).Str("session_id", id).Msg("session: created")
	return Session{ID: id, Key: key, Reused: false}, nil
}

// Invalidate drops the session record immediately, regardless of TTL state.
// Called by the retry controller on an upstream session conflict.
func (m *Manager) Invalidate(key Key) {
	unlock := m.lockKey(key)
	defer unlock()

	m.store.Delete(key)
	log.Info().Str("session_key", key.String()).Msg("session: invalidated")
}

// lockKey serializes all work on one session key. The returned unlock also
// releases the table entry once the last holder/waiter is done.
func (m *Manager) lockKey(key Key) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(config.DefaultSessionSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		if dropped := m.store.Sweep(m.now().Add(-m.ttl)); dropped > 0 {
			log.Debug().Int("dropped", dropped).Msg("session: swept expired records")
		}
	}
}
