// Stateless model inference.
package upstream

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ocigw/genai-gateway/internal/translate"
)

// inferenceAPIVersion is the upstream inference API date version.
const inferenceAPIVersion = "20231130"

// InferenceResult is the normalized outcome of a model inference call.
type InferenceResult struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// chatParamFields maps canonical merged-parameter keys onto the upstream
// GENERIC chat request field names.
var chatParamFields = map[string]string{
	"temperature":           "temperature",
	"top_p":                 "topP",
	"top_k":                 "topK",
	"frequency_penalty":     "frequencyPenalty",
	"presence_penalty":      "presencePenalty",
	"max_completion_tokens": "maxTokens",
	"reasoning_effort":      "reasoningEffort",
	"verbosity":             "verbosity",
}

// Chat performs a stateless inference call with the given normalized
// messages and merged parameters. Failures are soft *Error values.
func (c *Client) Chat(ctx context.Context, region, compartmentID, modelID string, messages []translate.Message, params map[string]any) (*InferenceResult, error) {
	if c.dryRun {
		return c.dryRunChat(messages), nil
	}

	payload := buildChatPayload(compartmentID, modelID, messages, params)

	log.Debug().Str("model", modelID).Str("region", region).Msg("inference: sending chat request")

	body, status, err := c.post(ctx, c.inferenceURL(region)+"/"+inferenceAPIVersion+"/actions/chat", []byte(payload))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &Error{StatusCode: status, Message: truncateBody(body)}
	}

	root := gjson.ParseBytes(body)
	text := root.Get("chatResponse.choices.0.message.content.0.text")
	if !text.Exists() {
		return nil, &Error{StatusCode: status, Message: "response missing output text: " + truncateBody(body)}
	}

	return &InferenceResult{
		Text:         text.String(),
		FinishReason: finishReason(root.Get("chatResponse.choices.0.finishReason").String()),
		Usage:        extractUsageObject(root.Get("chatResponse.usage")),
	}, nil
}

// buildChatPayload assembles the GENERIC api-format chat payload.
func buildChatPayload(compartmentID, modelID string, messages []translate.Message, params map[string]any) string {
	payload := `{"chatRequest":{"apiFormat":"GENERIC"}}`
	payload, _ = sjson.Set(payload, "compartmentId", compartmentID)
	payload, _ = sjson.Set(payload, "servingMode.servingType", "ON_DEMAND")
	payload, _ = sjson.Set(payload, "servingMode.modelId", modelID)
	payload, _ = sjson.Set(payload, "chatRequest.messages", messages)

	for key, value := range params {
		field, ok := chatParamFields[key]
		if !ok {
			continue
		}
		payload, _ = sjson.Set(payload, "chatRequest."+field, value)
	}
	return payload
}

// dryRunChat echoes the last user text, clearly tagged as simulated, with a
// nominal usage record.
func (c *Client) dryRunChat(messages []translate.Message) *InferenceResult {
	var promptParts []string
	for _, m := range messages {
		for _, p := range m.Content {
			if p.Type == translate.PartText && p.Text != "" {
				promptParts = append(promptParts, p.Text)
			}
		}
	}
	prompt := strings.Join(promptParts, "\n")

	text := "[dry-run] simulated response for: " + lastUserText(messages)
	return &InferenceResult{
		Text:         text,
		FinishReason: "stop",
		Usage:        NominalUsage(c.counter.Count(prompt), c.counter.Count(text)),
	}
}

// lastUserText returns the text of the last USER message, if any.
func lastUserText(messages []translate.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != translate.RoleUser {
			continue
		}
		var texts []string
		for _, p := range messages[i].Content {
			if p.Type == translate.PartText && p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}
	return ""
}

// finishReason normalizes an absent upstream finish reason to "stop".
func finishReason(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}
