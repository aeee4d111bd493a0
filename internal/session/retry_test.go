package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocigw/genai-gateway/internal/upstream"
)

func conflictErr() error {
	return errors.Join(errors.New("status 404"), upstream.ErrSessionConflict)
}

func TestSendWithRetry_HappyPathNoRetry(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestManager(backend, time.Hour)
	c := NewController(m, backend)

	reply, err := c.SendWithRetry(context.Background(), testRef, "slack", "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok: hello", reply.Text)
	assert.EqualValues(t, 1, atomic.LoadInt64(&backend.creates))
	assert.Len(t, backend.chats, 1)
}

func TestSendWithRetry_ConflictRecoversExactlyOnce(t *testing.T) {
	backend := &fakeBackend{chatErrs: []error{conflictErr(), nil}}
	m := newTestManager(backend, time.Hour)
	c := NewController(m, backend)

	// Seed an existing (soon stale upstream) session.
	seed, err := m.GetOrCreate(context.Background(), testRef, "slack", "u1")
	require.NoError(t, err)

	reply, err := c.SendWithRetry(context.Background(), testRef, "slack", "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok: hello", reply.Text)

	// One retry: two chat attempts total, second with a fresh session id.
	require.Len(t, backend.chats, 2)
	assert.Equal(t, seed.ID, backend.chats[0])
	assert.NotEqual(t, seed.ID, backend.chats[1])
	assert.EqualValues(t, 2, atomic.LoadInt64(&backend.creates))
}

func TestSendWithRetry_SecondConflictIsTerminal(t *testing.T) {
	backend := &fakeBackend{chatErrs: []error{conflictErr(), conflictErr()}}
	m := newTestManager(backend, time.Hour)
	c := NewController(m, backend)

	_, err := c.SendWithRetry(context.Background(), testRef, "slack", "u1", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrSessionConflict)

	// Exactly two attempts; no third retry.
	assert.Len(t, backend.chats, 2)
}

func TestSendWithRetry_OtherErrorsSurfaceWithoutRetry(t *testing.T) {
	soft := &upstream.Error{StatusCode: 500, Message: "boom"}
	backend := &fakeBackend{chatErrs: []error{soft}}
	m := newTestManager(backend, time.Hour)
	c := NewController(m, backend)

	_, err := c.SendWithRetry(context.Background(), testRef, "slack", "u1", "hello")
	require.Error(t, err)

	var ue *upstream.Error
	assert.ErrorAs(t, err, &ue)
	assert.Len(t, backend.chats, 1, "non-conflict failures must not be retried")
}
