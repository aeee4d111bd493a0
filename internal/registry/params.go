// Parameter merging for generation requests.
//
// DESIGN: Only a fixed allow-list of tunables is honored. Unknown request
// keys are dropped silently rather than forwarded, so clients cannot smuggle
// arbitrary fields into upstream payloads. An override fully replaces the
// matching default; there is no deep merge.
package registry

// canonicalMaxTokens is the single internal key for output length limits.
// max_tokens is accepted as a client-facing synonym.
const (
	canonicalMaxTokens = "max_completion_tokens"
	legacyMaxTokens    = "max_tokens"
)

// allowedParams is the fixed allow-list of tunable generation keys.
var allowedParams = map[string]struct{}{
	"temperature":        {},
	"top_p":              {},
	"top_k":              {},
	"frequency_penalty":  {},
	"presence_penalty":   {},
	"reasoning_effort":   {},
	"verbosity":          {},
	legacyMaxTokens:      {},
	canonicalMaxTokens:   {},
}

// MergeParams merges per-request overrides onto a descriptor's defaults.
// Keys outside the allow-list are ignored. After merging, max_tokens is
// normalized to max_completion_tokens; when both are present the canonical
// key wins.
func MergeParams(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		if _, ok := allowedParams[k]; !ok || v == nil {
			continue
		}
		merged[k] = v
	}

	if legacy, ok := merged[legacyMaxTokens]; ok {
		if _, canonical := merged[canonicalMaxTokens]; !canonical {
			merged[canonicalMaxTokens] = legacy
		}
		delete(merged, legacyMaxTokens)
	}
	return merged
}
