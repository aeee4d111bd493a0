// Package httpserver - chat.go serves the OpenAI-compatible endpoints.
package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/ocigw/genai-gateway/internal/compose"
	"github.com/ocigw/genai-gateway/internal/config"
	"github.com/ocigw/genai-gateway/internal/monitoring"
	"github.com/ocigw/genai-gateway/internal/registry"
	"github.com/ocigw/genai-gateway/internal/session"
	"github.com/ocigw/genai-gateway/internal/translate"
	"github.com/ocigw/genai-gateway/internal/upstream"
)

// handleChatCompletions serves /v1/chat/completions, with or without the
// region-scoped path prefix.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	desc, region, compartment, ok := s.resolveScope(w, r, body)
	if !ok {
		return
	}

	msgs := body.Get("messages")
	if !msgs.IsArray() || len(msgs.Array()) == 0 {
		writeError(w, "'messages' is required and must be a non-empty list", http.StatusBadRequest)
		return
	}

	label := modelLabel(body, desc)

	// Agent-kind aliases are conversational: the message content is
	// flattened to plain text and routed through the managed session with
	// conflict recovery instead of the stateless inference backend.
	if desc.Kind == registry.KindAgent {
		s.agentCompletion(w, r, started, body, desc, region, label)
		return
	}

	params := registry.MergeParams(desc.DefaultParams, overrides(body))
	messages := s.normalizer.Normalize(r.Context(), msgs.Array())

	result, err := s.client.Chat(r.Context(), region, compartment, desc.BackendID, messages, params)
	if err != nil {
		s.failUpstream(w, r, started, label, err)
		return
	}
	s.recordSuccess(r, started, label, result.Usage, body.Get("stream").Bool())

	if body.Get("stream").Bool() {
		compose.WriteSSE(w, compose.NewStream(label, result.Text))
		return
	}
	writeJSON(w, compose.NewCompletion(label, result.Text, result.FinishReason, result.Usage))
}

// agentCompletion serves a chat completion against an agent endpoint.
// Bare OpenAI clients carry no conversation identity, so the session key
// falls back to the optional "user" field and a fixed channel; distinct
// callers still get distinct sessions.
func (s *Server) agentCompletion(w http.ResponseWriter, r *http.Request, started time.Time, body gjson.Result, desc registry.Descriptor, region, label string) {
	channel := body.Get("channel").String()
	if channel == "" {
		channel = "openai"
	}
	cuid := body.Get("cuid").String()
	if cuid == "" {
		cuid = body.Get("user").String()
	}
	if cuid == "" {
		cuid = "anonymous"
	}

	text := translate.FlattenText(body.Get("messages").Array())
	ref := session.EndpointRef{Region: region, EndpointID: desc.BackendID}

	reply, err := s.retry.SendWithRetry(r.Context(), ref, channel, cuid, text)
	if err != nil {
		if errors.Is(err, upstream.ErrSessionConflict) {
			s.metrics.RecordSessionConflict()
		}
		s.failUpstream(w, r, started, label, err)
		return
	}
	s.recordSuccess(r, started, label, reply.Usage, body.Get("stream").Bool())

	if body.Get("stream").Bool() {
		compose.WriteSSE(w, compose.NewStream(label, reply.Text))
		return
	}
	writeJSON(w, compose.NewCompletion(label, reply.Text, "", reply.Usage))
}

// handleTextCompletions serves the legacy /v1/completions shape: a prompt
// string (or list of strings) wrapped as a single user chat message.
func (s *Server) handleTextCompletions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	desc, region, compartment, ok := s.resolveScope(w, r, body)
	if !ok {
		return
	}

	prompt := body.Get("prompt")
	if !prompt.Exists() {
		writeError(w, "'prompt' is required", http.StatusBadRequest)
		return
	}

	label := modelLabel(body, desc)
	params := registry.MergeParams(desc.DefaultParams, overrides(body))
	messages := promptMessages(prompt)

	result, err := s.client.Chat(r.Context(), region, compartment, desc.BackendID, messages, params)
	if err != nil {
		s.failUpstream(w, r, started, label, err)
		return
	}
	s.recordSuccess(r, started, label, result.Usage, body.Get("stream").Bool())

	if body.Get("stream").Bool() {
		compose.WriteSSE(w, compose.NewStream(label, result.Text))
		return
	}
	writeJSON(w, compose.NewTextCompletion(label, result.Text, result.FinishReason, result.Usage))
}

// handleInference serves the original raw prompt endpoint:
// POST /genai/{region}/{compartment}/{model}/inference with {"prompt": ...}.
func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	prompt := body.Get("prompt").String()
	if prompt == "" {
		writeError(w, "'prompt' is required", http.StatusBadRequest)
		return
	}

	desc, err := s.registry.Resolve(r.PathValue("model"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	messages := []translate.Message{{
		Role:    translate.RoleUser,
		Content: []translate.Part{{Type: translate.PartText, Text: prompt}},
	}}
	params := registry.MergeParams(desc.DefaultParams, nil)

	result, err := s.client.Chat(r.Context(), r.PathValue("region"), r.PathValue("compartment"), desc.BackendID, messages, params)
	if err != nil {
		s.failUpstream(w, r, started, desc.Alias, err)
		return
	}
	s.recordSuccess(r, started, desc.Alias, result.Usage, false)

	writeJSON(w, map[string]string{"response": result.Text})
}

// readBody parses the request body as JSON. Responds and returns ok=false
// on read or syntax failures.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, "failed to read request body", status)
		return gjson.Result{}, false
	}
	if len(data) == 0 {
		return gjson.Parse("{}"), true
	}
	if !gjson.ValidBytes(data) {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(data), true
}

// resolveScope resolves the target model plus the region and compartment for
// the call. The body's "model" wins over the path segment; descriptor values
// fill whatever the path does not carry.
func (s *Server) resolveScope(w http.ResponseWriter, r *http.Request, body gjson.Result) (registry.Descriptor, string, string, bool) {
	name := body.Get("model").String()
	if name == "" {
		name = r.PathValue("model")
	}

	desc, err := s.registry.Resolve(name)
	if err != nil && name != r.PathValue("model") && r.PathValue("model") != "" {
		desc, err = s.registry.Resolve(r.PathValue("model"))
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return registry.Descriptor{}, "", "", false
	}

	region := r.PathValue("region")
	if region == "" {
		region = desc.Region
	}
	if region == "" {
		region = config.DefaultRegion
	}

	compartment := r.PathValue("compartment")
	if compartment == "" {
		compartment = desc.CompartmentID
	}

	return desc, region, compartment, true
}

// modelLabel is the model name echoed back to the client.
func modelLabel(body gjson.Result, desc registry.Descriptor) string {
	if name := body.Get("model").String(); name != "" {
		return name
	}
	if desc.Alias != "" {
		return desc.Alias
	}
	return desc.BackendID
}

// overrides extracts the request body as a flat map for parameter merging.
// The merge allow-list drops everything that is not a tunable.
func overrides(body gjson.Result) map[string]any {
	var m map[string]any
	_ = json.Unmarshal([]byte(body.Raw), &m)
	return m
}

// promptMessages wraps a prompt (string or list of strings) as one user
// chat message.
func promptMessages(prompt gjson.Result) []translate.Message {
	text := prompt.String()
	if prompt.IsArray() {
		parts := make([]string, 0, len(prompt.Array()))
		for _, p := range prompt.Array() {
			parts = append(parts, p.String())
		}
		text = strings.Join(parts, "\n")
	}
	return []translate.Message{{
		Role:    translate.RoleUser,
		Content: []translate.Part{{Type: translate.PartText, Text: text}},
	}}
}

// failUpstream renders an upstream failure and records it.
func (s *Server) failUpstream(w http.ResponseWriter, r *http.Request, started time.Time, model string, err error) {
	s.metrics.RecordRequest(false)
	s.tracker.RecordRequest(monitoring.RequestRecord{
		Timestamp:  started,
		Route:      r.URL.Path,
		Model:      model,
		Status:     http.StatusBadGateway,
		DurationMs: time.Since(started).Milliseconds(),
	})
	log.Error().Err(err).Str("model", model).Str("path", r.URL.Path).Msg("upstream call failed")
	writeError(w, err.Error(), http.StatusBadGateway)
}

// recordSuccess records metrics and telemetry for a served request.
func (s *Server) recordSuccess(r *http.Request, started time.Time, model string, usage upstream.Usage, streamed bool) {
	s.metrics.RecordRequest(true)
	if streamed {
		s.metrics.RecordStream()
	}
	if s.client.DryRun() {
		s.metrics.RecordDryRun()
	}
	prompt, completion := usageInts(usage)
	s.metrics.RecordTokens(prompt, completion)
	s.tracker.RecordRequest(monitoring.RequestRecord{
		Timestamp:        started,
		Route:            r.URL.Path,
		Model:            model,
		Status:           http.StatusOK,
		Streamed:         streamed,
		DryRun:           s.client.DryRun(),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		DurationMs:       time.Since(started).Milliseconds(),
	})
}

func usageInts(u upstream.Usage) (int, int) {
	var prompt, completion int
	if u.PromptTokens != nil {
		prompt = *u.PromptTokens
	}
	if u.CompletionTokens != nil {
		completion = *u.CompletionTokens
	}
	return prompt, completion
}
