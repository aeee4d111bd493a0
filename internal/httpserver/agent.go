// Package httpserver - agent.go serves the stateful agent endpoints.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/monitoring"
	"github.com/ocigw/genai-gateway/internal/session"
	"github.com/ocigw/genai-gateway/internal/upstream"
)

// sessionResponse mirrors the session controller contract: the backend
// session id, the derived session key, and whether it was reused.
type sessionResponse struct {
	ID         string `json:"id"`
	SessionKey string `json:"sessionKey"`
	Reused     bool   `json:"reused"`
}

// handleAgentSession reuses or creates a session for (channel, cuid).
func (s *Server) handleAgentSession(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	channel := body.Get("channel").String()
	cuid := body.Get("cuid").String()
	if channel == "" || cuid == "" {
		writeError(w, "'channel' and 'cuid' are required", http.StatusBadRequest)
		return
	}

	ref := session.EndpointRef{Region: r.PathValue("region"), EndpointID: r.PathValue("endpoint")}
	sess, err := s.sessions.GetOrCreate(r.Context(), ref, channel, cuid)
	if err != nil {
		log.Error().Err(err).Str("session_key", channel+":"+cuid).Msg("agent session create failed")
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.metrics.RecordSession(sess.Reused)

	writeJSON(w, sessionResponse{ID: sess.ID, SessionKey: sess.Key.String(), Reused: sess.Reused})
}

// handleAgentChat sends one user message to the agent runtime.
//
// Two modes: when the body carries channel and cuid, the gateway manages the
// session itself (reuse, expiry, conflict recovery) and the path session
// segment is ignored. Otherwise the path session id is used verbatim and a
// stale id surfaces as 409 for the client to recreate.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	userMessage := body.Get("userMessage").String()
	if userMessage == "" {
		writeError(w, "'userMessage' is required", http.StatusBadRequest)
		return
	}

	ref := session.EndpointRef{Region: r.PathValue("region"), EndpointID: r.PathValue("endpoint")}
	channel := body.Get("channel").String()
	cuid := body.Get("cuid").String()

	var reply *upstream.AgentReply
	var err error
	if channel != "" && cuid != "" {
		reply, err = s.retry.SendWithRetry(r.Context(), ref, channel, cuid, userMessage)
	} else {
		reply, err = s.client.AgentChat(r.Context(), ref.Region, ref.EndpointID, r.PathValue("session"), userMessage)
	}

	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, upstream.ErrSessionConflict) {
			s.metrics.RecordSessionConflict()
			status = http.StatusConflict
		}
		s.metrics.RecordRequest(false)
		s.tracker.RecordRequest(monitoring.RequestRecord{
			Timestamp:  started,
			Route:      r.URL.Path,
			Channel:    channel,
			ClientID:   cuid,
			Status:     status,
			DurationMs: time.Since(started).Milliseconds(),
		})
		log.Error().Err(err).Str("endpoint", ref.EndpointID).Msg("agent chat failed")
		writeError(w, err.Error(), status)
		return
	}

	s.metrics.RecordRequest(true)
	if s.client.DryRun() {
		s.metrics.RecordDryRun()
	}
	prompt, completion := usageInts(reply.Usage)
	s.metrics.RecordTokens(prompt, completion)
	s.tracker.RecordRequest(monitoring.RequestRecord{
		Timestamp:        started,
		Route:            r.URL.Path,
		Channel:          channel,
		ClientID:         cuid,
		Status:           http.StatusOK,
		DryRun:           s.client.DryRun(),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		DurationMs:       time.Since(started).Milliseconds(),
	})

	writeJSON(w, map[string]json.RawMessage{"agentResponse": json.RawMessage(reply.Raw)})
}
