package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ocigw/genai-gateway/internal/config"
	"github.com/ocigw/genai-gateway/internal/translate"
)

func userMessage(text string) translate.Message {
	return translate.Message{
		Role:    translate.RoleUser,
		Content: []translate.Part{{Type: translate.PartText, Text: text}},
	}
}

func TestBuildChatPayload_GenericFormat(t *testing.T) {
	payload := buildChatPayload("ocid1.compartment.oc1..c", "ocid1.generativeaimodel.oc1..m",
		[]translate.Message{userMessage("hi")},
		map[string]any{
			"temperature":           0.4,
			"top_p":                 0.9,
			"max_completion_tokens": 2048,
			"not_a_real_param":      true,
		})

	root := gjson.Parse(payload)
	assert.Equal(t, "GENERIC", root.Get("chatRequest.apiFormat").String())
	assert.Equal(t, "ON_DEMAND", root.Get("servingMode.servingType").String())
	assert.Equal(t, "ocid1.generativeaimodel.oc1..m", root.Get("servingMode.modelId").String())
	assert.Equal(t, "ocid1.compartment.oc1..c", root.Get("compartmentId").String())
	assert.Equal(t, "USER", root.Get("chatRequest.messages.0.role").String())
	assert.Equal(t, "hi", root.Get("chatRequest.messages.0.content.0.text").String())
	assert.Equal(t, 0.4, root.Get("chatRequest.temperature").Float())
	assert.Equal(t, int64(2048), root.Get("chatRequest.maxTokens").Int())
	assert.False(t, root.Get("chatRequest.not_a_real_param").Exists())
}

func TestChat_ParsesResponseAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/20231130/actions/chat", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"chatResponse": {
				"choices": [{"message": {"content": [{"text": "the answer"}]}, "finishReason": "stop"}],
				"usage": {"promptTokens": 12, "completionTokens": 3}
			}
		}`))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	res, err := c.Chat(context.Background(), "us-chicago-1", "comp", "model", []translate.Message{userMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer", res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, 12, *res.Usage.PromptTokens)
	assert.Equal(t, 15, *res.Usage.TotalTokens)
}

func TestChat_MissingTextIsSoftError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chatResponse":{"choices":[]}}`))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	_, err := c.Chat(context.Background(), "r", "comp", "model", []translate.Message{userMessage("q")}, nil)

	var ue *Error
	require.ErrorAs(t, err, &ue)
}

func TestChat_Non2xxIsSoftError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := liveClient(t, srv.URL)
	_, err := c.Chat(context.Background(), "r", "comp", "model", []translate.Message{userMessage("q")}, nil)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
}

func TestChat_TransportFailureIsSoftError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := liveClient(t, url)
	_, err := c.Chat(context.Background(), "r", "comp", "model", []translate.Message{userMessage("q")}, nil)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Zero(t, ue.StatusCode)
}

func TestChat_DryRunEchoesLastUserMessage(t *testing.T) {
	c := NewClient(config.Credentials{TestMode: true})
	require.True(t, c.DryRun())

	res, err := c.Chat(context.Background(), "r", "comp", "model", []translate.Message{
		{Role: translate.RoleSystem, Content: []translate.Part{{Type: translate.PartText, Text: "be nice"}}},
		userMessage("what time is it"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[dry-run] simulated response for: what time is it", res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	require.NotNil(t, res.Usage.PromptTokens)
	assert.Positive(t, *res.Usage.PromptTokens)
}
