// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// TokenEstimateRatio is the approximate number of characters per token.
// Used for rough token counting when the tokenizer is unavailable.
const TokenEstimateRatio = 4

// =============================================================================
// SESSION DEFAULTS
// =============================================================================

// DefaultSessionTTL is the sliding idle window for agent sessions.
// Every successful reuse refreshes the window.
const DefaultSessionTTL = 2 * time.Hour

// DefaultSessionSweepInterval is the frequency of the background sweep
// that drops expired session records. Expiry is always re-checked at
// lookup time, so the sweep only reclaims memory.
const DefaultSessionSweepInterval = 5 * time.Minute

// =============================================================================
// HTTP AND NETWORKING
// =============================================================================

// DefaultListenAddr is the gateway listen address.
const DefaultListenAddr = ":8000"

// DefaultRegion is used when neither the request path nor the model
// descriptor carries a region.
const DefaultRegion = "us-chicago-1"

// DefaultUpstreamTimeout bounds a single upstream inference or agent call.
const DefaultUpstreamTimeout = 240 * time.Second

// DefaultImageFetchTimeout bounds a remote image dereference.
const DefaultImageFetchTimeout = 15 * time.Second

// MaxRequestBodySize is the maximum allowed client request body (10MB).
const MaxRequestBodySize = 10 * 1024 * 1024

// MaxImageBytes is the maximum remote image size inlined as a data URI (8MB).
const MaxImageBytes = 8 * 1024 * 1024

// MaxErrorBodyLogLen limits upstream error bodies in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 1 * time.Minute

// DefaultServerWriteTimeout for the HTTP server (safe for simulated streaming).
const DefaultServerWriteTimeout = 10 * time.Minute
