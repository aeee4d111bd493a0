// Package compose renders final output text as OpenAI-compatible response
// objects and simulated streaming sequences.
package compose

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocigw/genai-gateway/internal/upstream"
)

// AssistantRole is the role reported on all composed responses.
const AssistantRole = "assistant"

// Message is the assistant message inside a completion choice.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion alternative. The gateway always produces exactly one.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Completion is the synchronous chat response object.
type Completion struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   upstream.Usage `json:"usage"`
}

// TextChoice is one legacy text-completion alternative.
type TextChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	FinishReason string  `json:"finish_reason"`
	Logprobs     *string `json:"logprobs"`
}

// TextCompletion is the legacy /v1/completions response object.
type TextCompletion struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []TextChoice   `json:"choices"`
	Usage   upstream.Usage `json:"usage"`
}

// NewCompletion builds a single synchronous chat response.
func NewCompletion(model, text, finish string, usage upstream.Usage) Completion {
	if finish == "" {
		finish = "stop"
	}
	return Completion{
		ID:      newID("chatcmpl"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Message:      Message{Role: AssistantRole, Content: text},
			FinishReason: finish,
		}},
		Usage: usage,
	}
}

// NewTextCompletion builds a legacy text completion response.
func NewTextCompletion(model, text, finish string, usage upstream.Usage) TextCompletion {
	if finish == "" {
		finish = "stop"
	}
	return TextCompletion{
		ID:      newID("cmpl"),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []TextChoice{{Text: text, FinishReason: finish}},
		Usage:   usage,
	}
}

// newID builds an OpenAI-style identifier: prefix plus 24 hex characters.
func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}
