// Stateful agent sessions and chat.
//
// DESIGN: The agent runtime's response envelope varies across versions, so
// the textual payload is located with an ordered probe pipeline over the
// common field names, recursing into nested objects and arrays. The probe
// order is an explicit, tested contract — do not reorder casually.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// AgentReply is the normalized outcome of one agent chat turn.
type AgentReply struct {
	Text  string
	Usage Usage
	Raw   []byte // full upstream envelope, for the passthrough endpoints
}

// agentTextProbes is the ordered field-probe contract for locating the
// textual payload inside an agent response envelope.
var agentTextProbes = []string{
	"message", "answer", "output_text", "outputText",
	"output", "text", "content", "data", "result",
}

// CreateAgentSession creates a fresh upstream session and returns its id.
func (c *Client) CreateAgentSession(ctx context.Context, region, endpointID, displayName string, idleTimeout time.Duration) (string, error) {
	if c.dryRun {
		return fmt.Sprintf("test_session_%s_%d", shortID(endpointID), time.Now().Unix()), nil
	}

	payload := "{}"
	payload, _ = sjson.Set(payload, "description", "Session for "+displayName)
	payload, _ = sjson.Set(payload, "displayName", displayName)
	payload, _ = sjson.Set(payload, "idleTimeoutInSeconds", fmt.Sprintf("%d", int(idleTimeout.Seconds())))

	url := c.agentURL(region) + "/agentEndpoints/" + endpointID + "/sessions"
	body, status, err := c.post(ctx, url, []byte(payload))
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &Error{StatusCode: status, Message: truncateBody(body)}
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", &Error{StatusCode: status, Message: "session response missing id: " + truncateBody(body)}
	}
	log.Info().Str("session_id", id).Str("display_name", displayName).Msg("agent: created session")
	return id, nil
}

// AgentChat sends one user message to an existing session. A 409, or a 404
// whose body references the session, means the session id is no longer valid
// upstream and is reported as ErrSessionConflict so the caller can recover.
// A 404 that does not mention the session (e.g. a bad endpoint id) stays a
// plain soft failure — recreating the session would not help.
func (c *Client) AgentChat(ctx context.Context, region, endpointID, sessionID, userMessage string) (*AgentReply, error) {
	if c.dryRun {
		text := "[dry-run] simulated agent response for: " + userMessage
		raw := "{}"
		raw, _ = sjson.Set(raw, "message", text)
		raw, _ = sjson.Set(raw, "sessionId", sessionID)
		return &AgentReply{
			Text:  text,
			Usage: NominalUsage(c.counter.Count(userMessage), c.counter.Count(text)),
			Raw:   []byte(raw),
		}, nil
	}

	payload := "{}"
	payload, _ = sjson.Set(payload, "userMessage", userMessage)
	payload, _ = sjson.Set(payload, "shouldStream", false)
	payload, _ = sjson.Set(payload, "sessionId", sessionID)

	url := c.agentURL(region) + "/agentEndpoints/" + endpointID + "/actions/chat"
	body, status, err := c.post(ctx, url, []byte(payload))
	if err != nil {
		return nil, err
	}
	if status == http.StatusConflict || (status == http.StatusNotFound && mentionsSession(body)) {
		return nil, fmt.Errorf("agent chat: status %d: %s: %w", status, truncateBody(body), ErrSessionConflict)
	}
	if status < 200 || status >= 300 {
		return nil, &Error{StatusCode: status, Message: truncateBody(body)}
	}

	root := gjson.ParseBytes(body)
	return &AgentReply{
		Text:  extractAgentText(root),
		Usage: extractTraceUsage(root),
		Raw:   body,
	}, nil
}

// extractAgentText walks the probe list, recursing into objects and arrays.
// Returns "" when no textual payload is found.
func extractAgentText(node gjson.Result) string {
	for _, probe := range agentTextProbes {
		v := node.Get(probe)
		if !v.Exists() {
			continue
		}
		if text := textFromValue(v); text != "" {
			return text
		}
	}
	return ""
}

func textFromValue(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsObject():
		return extractAgentText(v)
	case v.IsArray():
		for _, elem := range v.Array() {
			if text := textFromValue(elem); text != "" {
				return text
			}
		}
	}
	return ""
}

// mentionsSession reports whether an error body refers to the session.
func mentionsSession(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "session")
}

// shortID returns the first 8 characters of an id for display purposes.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
