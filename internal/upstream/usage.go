// Token-usage extraction across the two upstream reporting shapes.
//
// DESIGN: The inference backend reports a single usage object; the agent
// backend reports per-step usage inside a generation trace, which must be
// summed before being shown to the client. Both camelCase and snake_case
// field names appear in the wild, so every lookup probes both.
package upstream

import "github.com/tidwall/gjson"

// Usage is the client-facing token accounting. Fields are nil when the
// upstream omitted them.
type Usage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
}

// NominalUsage builds a fully populated usage record, used in dry-run mode.
func NominalUsage(prompt, completion int) Usage {
	total := prompt + completion
	return Usage{PromptTokens: &prompt, CompletionTokens: &completion, TotalTokens: &total}
}

// promptTokenKeys and completionTokenKeys list the accepted field spellings,
// probed in order. The inference path reports snake_case first; the agent
// runtime prefers camelCase.
var (
	promptTokenKeys     = []string{"promptTokens", "prompt_tokens", "inputTokens", "input_tokens"}
	completionTokenKeys = []string{"completionTokens", "completion_tokens", "outputTokens", "output_tokens"}
	totalTokenKeys      = []string{"totalTokens", "total_tokens"}
)

// extractUsageObject reads one usage object, tolerating both field casings.
func extractUsageObject(obj gjson.Result) Usage {
	var u Usage
	if v, ok := firstInt(obj, promptTokenKeys); ok {
		u.PromptTokens = &v
	}
	if v, ok := firstInt(obj, completionTokenKeys); ok {
		u.CompletionTokens = &v
	}
	if v, ok := firstInt(obj, totalTokenKeys); ok {
		u.TotalTokens = &v
	} else if u.PromptTokens != nil && u.CompletionTokens != nil {
		total := *u.PromptTokens + *u.CompletionTokens
		u.TotalTokens = &total
	}
	return u
}

// extractTraceUsage sums per-step usage across an agent generation trace.
// Steps without a usage object contribute nothing.
func extractTraceUsage(root gjson.Result) Usage {
	steps := root.Get("traces")
	if !steps.IsArray() {
		// Some envelope versions report a single usage object instead.
		if obj := root.Get("usage"); obj.IsObject() {
			return extractUsageObject(obj)
		}
		return Usage{}
	}

	var prompt, completion int
	found := false
	for _, step := range steps.Array() {
		obj := step.Get("usage")
		if !obj.IsObject() {
			continue
		}
		if v, ok := firstInt(obj, promptTokenKeys); ok {
			prompt += v
			found = true
		}
		if v, ok := firstInt(obj, completionTokenKeys); ok {
			completion += v
			found = true
		}
	}
	if !found {
		return Usage{}
	}
	return NominalUsage(prompt, completion)
}

// firstInt returns the first present key's integer value.
func firstInt(obj gjson.Result, keys []string) (int, bool) {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() {
			return int(v.Int()), true
		}
	}
	return 0, false
}
