// Conflict recovery for agent chat.
//
// DESIGN: When the upstream reports the session id as invalid, the stale
// record is dropped, a fresh session is obtained, and the call is retried
// exactly once. A second consecutive conflict is terminal. Every other
// failure class surfaces immediately without retry.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/upstream"
)

// Controller wraps agent chat calls with session management and the
// one-shot conflict recovery.
type Controller struct {
	sessions *Manager
	backend  Backend
}

// NewController creates a retry controller over the given manager and backend.
func NewController(sessions *Manager, backend Backend) *Controller {
	return &Controller{sessions: sessions, backend: backend}
}

// SendWithRetry obtains a session for (channel, clientId) and sends one user
// message, recovering from at most one session conflict.
func (c *Controller) SendWithRetry(ctx context.Context, ref EndpointRef, channel, clientID, message string) (*upstream.AgentReply, error) {
	sess, err := c.sessions.GetOrCreate(ctx, ref, channel, clientID)
	if err != nil {
		return nil, err
	}

	reply, err := c.backend.Chat(ctx, ref, sess.ID, message)
	if !errors.Is(err, upstream.ErrSessionConflict) {
		return reply, err
	}

	log.Warn().Str("session_key", sess.Key.String()).Str("session_id", sess.ID).
		Msg("agent chat: session conflict, recreating session")

	c.sessions.Invalidate(sess.Key)
	fresh, err := c.sessions.GetOrCreate(ctx, ref, channel, clientID)
	if err != nil {
		return nil, err
	}

	reply, err = c.backend.Chat(ctx, ref, fresh.ID, message)
	if errors.Is(err, upstream.ErrSessionConflict) {
		return nil, fmt.Errorf("agent chat: conflict persisted after session recreation: %w", err)
	}
	return reply, err
}
