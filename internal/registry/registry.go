// Package registry resolves client-facing model aliases to upstream backend
// descriptors.
//
// DESIGN: The alias table is re-read from its YAML source on every Resolve
// call so operators can add or retune models without restarting the gateway.
// A missing or structurally invalid file falls back to the built-in defaults
// with a warning; snapshot loading never fails the caller. Raw backend ids
// (ocid1.generativeaimodel...) bypass the table entirely.
package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// backendIDPrefix recognizes raw upstream model identifiers.
const backendIDPrefix = "ocid1.generativeaimodel"

// ErrModelNotFound is returned when an identifier is neither a known alias
// nor a syntactically valid raw backend id.
var ErrModelNotFound = fmt.Errorf("model not found")

// Kind distinguishes stateless inference models from stateful agent endpoints.
type Kind string

const (
	KindModel Kind = "model"
	KindAgent Kind = "agent"
)

// Descriptor maps an alias to an upstream backend. Immutable once loaded.
type Descriptor struct {
	Alias         string
	BackendID     string
	Kind          Kind
	Region        string
	CompartmentID string
	DefaultParams map[string]any
}

// modelYAML is the on-disk shape: alias -> {id, compartmentId, region, type, params}.
type modelYAML struct {
	ID            string         `yaml:"id"`
	CompartmentID string         `yaml:"compartmentId"`
	Region        string         `yaml:"region"`
	Type          string         `yaml:"type"`
	Params        map[string]any `yaml:"params"`
}

// Registry resolves aliases against a hot-reloaded snapshot.
type Registry struct {
	path    string
	builtin map[string]Descriptor
}

// New creates a registry backed by the YAML file at path. An empty path
// serves the built-in defaults only.
func New(path string) *Registry {
	return &Registry{path: path, builtin: builtinModels()}
}

// Resolve maps an alias or raw backend id to a descriptor.
// Resolution order: exact alias match in the current snapshot, then raw
// backend-id passthrough with empty defaults. No fuzzy matching.
func (r *Registry) Resolve(nameOrID string) (Descriptor, error) {
	snapshot := r.snapshot()

	if d, ok := snapshot[nameOrID]; ok {
		return d, nil
	}
	if strings.HasPrefix(nameOrID, backendIDPrefix) {
		return Descriptor{
			Alias:         nameOrID,
			BackendID:     nameOrID,
			Kind:          KindModel,
			DefaultParams: map[string]any{},
		}, nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q (known: %s)", ErrModelNotFound, nameOrID, strings.Join(aliases(snapshot), ", "))
}

// Aliases returns the alias names in the current snapshot.
func (r *Registry) Aliases() []string {
	return aliases(r.snapshot())
}

// snapshot re-reads the YAML source, falling back to the built-in defaults
// when the source is absent or invalid. Never returns an error.
func (r *Registry) snapshot() map[string]Descriptor {
	if r.path == "" {
		return r.builtin
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("model config unreadable, using built-in defaults")
		return r.builtin
	}

	var raw map[string]modelYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("model config invalid, using built-in defaults")
		return r.builtin
	}

	snapshot := make(map[string]Descriptor, len(raw))
	for alias, m := range raw {
		if m.ID == "" {
			log.Warn().Str("alias", alias).Str("path", r.path).Msg("model config entry missing id, using built-in defaults")
			return r.builtin
		}
		kind := KindModel
		if strings.EqualFold(m.Type, string(KindAgent)) {
			kind = KindAgent
		}
		params := m.Params
		if params == nil {
			params = map[string]any{}
		}
		snapshot[alias] = Descriptor{
			Alias:         alias,
			BackendID:     m.ID,
			Kind:          kind,
			Region:        m.Region,
			CompartmentID: m.CompartmentID,
			DefaultParams: params,
		}
	}
	return snapshot
}

func aliases(snapshot map[string]Descriptor) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	return names
}

// builtinModels is the default alias table, used whenever the external
// source is absent or invalid.
func builtinModels() map[string]Descriptor {
	return map[string]Descriptor{
		"gpt5": {
			Alias:     "gpt5",
			BackendID: "ocid1.generativeaimodel.oc1.us-chicago-1.amaaaaaask7dceyasebknceb4ekbiaiisjtu3fj5i7s4io3ignvg4ip2uyma",
			Kind:      KindModel,
			DefaultParams: map[string]any{
				"max_completion_tokens": 2048,
				"reasoning_effort":      "MEDIUM",
				"verbosity":             "MEDIUM",
			},
		},
		"grok3mini": {
			Alias:     "grok3mini",
			BackendID: "ocid1.generativeaimodel.oc1.us-chicago-1.amaaaaaask7dceyavwbgai5nlntsd5hngaileroifuoec5qxttmydhq7mykq",
			Kind:      KindModel,
			DefaultParams: map[string]any{
				"temperature": 1,
				"top_p":       1,
				"max_tokens":  600,
			},
		},
		"llama4maverick": {
			Alias:     "llama4maverick",
			BackendID: "ocid1.generativeaimodel.oc1.us-chicago-1.amaaaaaask7dceyayjawvuonfkw2ua4bob4rlnnlhs522pafbglivtwlfzta",
			Kind:      KindModel,
			DefaultParams: map[string]any{
				"temperature":       1,
				"top_p":             0.75,
				"max_tokens":        600,
				"frequency_penalty": 0,
				"presence_penalty":  0,
			},
		},
	}
}
