package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ocigw/genai-gateway/internal/config"
)

func liveClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	return &Client{
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		counter:       NewTokenCounter(),
		inferenceBase: srvURL,
		agentBase:     srvURL,
	}
}

func TestExtractAgentText_ProbeOrderContract(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"flat message", `{"message":"hi"}`, "hi"},
		{"message beats answer", `{"answer":"b","message":"a"}`, "a"},
		{"nested message content", `{"message":{"content":[{"text":"nested"}]}}`, "nested"},
		{"nested message text", `{"message":{"text":"inner"}}`, "inner"},
		{"answer", `{"answer":"a"}`, "a"},
		{"output_text", `{"output_text":"o"}`, "o"},
		{"outputText", `{"outputText":"o2"}`, "o2"},
		{"output", `{"output":"out"}`, "out"},
		{"text", `{"text":"t"}`, "t"},
		{"content string", `{"content":"c"}`, "c"},
		{"data nested", `{"data":{"result":"deep"}}`, "deep"},
		{"result", `{"result":"r"}`, "r"},
		{"array of blocks", `{"content":[{"text":"block"}]}`, "block"},
		{"nothing", `{"sessionId":"x","status":"ok"}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractAgentText(gjson.Parse(tc.body)))
		})
	}
}

func TestCreateAgentSession_SendsExpectedPayload(t *testing.T) {
	var captured string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/agentEndpoints/ep-1/sessions"))
		captured = readAll(t, r)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"sess-123"}`))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	id, err := c.CreateAgentSession(context.Background(), "us-chicago-1", "ep-1", "slack:u42", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "sess-123", id)

	payload := gjson.Parse(captured)
	assert.Equal(t, "slack:u42", payload.Get("displayName").String())
	assert.Equal(t, "7200", payload.Get("idleTimeoutInSeconds").String())
}

func TestAgentChat_ConflictStatusIsTyped(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusConflict} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"session not found"}`))
		}))

		c := liveClient(t, srv.URL)
		_, err := c.AgentChat(context.Background(), "us-chicago-1", "ep-1", "gone", "hello")
		assert.ErrorIs(t, err, ErrSessionConflict, "status %d", status)
		srv.Close()
	}
}

func TestAgentChat_NotFoundWithoutSessionReferenceIsSoftError(t *testing.T) {
	// A 404 for a nonexistent endpoint id must not trigger session recovery.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NotAuthorizedOrNotFound","message":"agent endpoint not found"}`))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	_, err := c.AgentChat(context.Background(), "us-chicago-1", "ep-typo", "s1", "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionConflict)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
}

func TestAgentChat_OtherFailuresAreSoftErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	_, err := c.AgentChat(context.Background(), "us-chicago-1", "ep-1", "s1", "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionConflict)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestAgentChat_ExtractsTextAndTraceUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := gjson.Parse(readAll(t, r))
		assert.Equal(t, "hello", body.Get("userMessage").String())
		assert.False(t, body.Get("shouldStream").Bool())
		assert.Equal(t, "s1", body.Get("sessionId").String())

		_, _ = w.Write([]byte(`{
			"message": {"content": [{"text": "agent says hi"}]},
			"traces": [
				{"usage": {"inputTokens": 10, "outputTokens": 5}},
				{"usage": {"inputTokens": 3, "outputTokens": 2}}
			]
		}`))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	reply, err := c.AgentChat(context.Background(), "us-chicago-1", "ep-1", "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "agent says hi", reply.Text)
	assert.Equal(t, 13, *reply.Usage.PromptTokens)
	assert.Equal(t, 7, *reply.Usage.CompletionTokens)
	assert.Equal(t, 20, *reply.Usage.TotalTokens)
}

func TestAgentChat_DryRunEcho(t *testing.T) {
	c := NewClient(config.Credentials{TestMode: true})
	require.True(t, c.DryRun())

	reply, err := c.AgentChat(context.Background(), "us-chicago-1", "ep-1", "s1", "ping")
	require.NoError(t, err)
	assert.Equal(t, "[dry-run] simulated agent response for: ping", reply.Text)
	require.NotNil(t, reply.Usage.TotalTokens)
	assert.Positive(t, *reply.Usage.TotalTokens)
	assert.Equal(t, reply.Text, gjson.GetBytes(reply.Raw, "message").String())
}

func TestCreateAgentSession_DryRunIDShape(t *testing.T) {
	c := NewClient(config.Credentials{TestMode: true})

	id, err := c.CreateAgentSession(context.Background(), "r", "endpoint-ocid", "web:u1", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "test_session_endpoint"), id)
}

func readAll(t *testing.T, r *http.Request) string {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(data)
}
