// Package upstream invokes the generative-AI platform's inference and agent
// backends.
//
// DESIGN: Two call shapes share one signed HTTP client:
//   - Chat():       stateless model inference (GENERIC api-format payload)
//   - AgentChat():  stateful agent turn against an existing session
//
// Without usable credentials the client runs in dry-run mode, returning
// deterministic placeholder output with a nominal usage record so the rest
// of the gateway can be exercised offline. All failures are soft *Error
// values; nothing here panics or aborts the request on its own.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/config"
)

// Client calls the upstream platform.
type Client struct {
	httpClient *http.Client
	signer     *Signer
	dryRun     bool
	counter    *TokenCounter

	// Base URL overrides for tests; empty means the regional defaults.
	inferenceBase string
	agentBase     string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the regional endpoint templates. Used by tests.
func WithBaseURLs(inference, agent string) Option {
	return func(c *Client) {
		c.inferenceBase = inference
		c.agentBase = agent
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client from credentials. Incomplete credentials or a
// broken key switch the client to dry-run mode instead of failing.
func NewClient(creds config.Credentials, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: config.DefaultUpstreamTimeout},
		counter:    NewTokenCounter(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if !creds.Configured() {
		c.dryRun = true
		log.Warn().Msg("upstream credentials not configured, running in dry-run mode")
		return c
	}

	signer, err := NewSigner(creds)
	if err != nil {
		c.dryRun = true
		log.Warn().Err(err).Msg("upstream signer init failed, running in dry-run mode")
		return c
	}
	c.signer = signer
	return c
}

// DryRun reports whether the client returns simulated responses.
func (c *Client) DryRun() bool { return c.dryRun }

func (c *Client) inferenceURL(region string) string {
	if c.inferenceBase != "" {
		return c.inferenceBase
	}
	return fmt.Sprintf("https://inference.generativeai.%s.oci.oraclecloud.com", region)
}

func (c *Client) agentURL(region string) string {
	if c.agentBase != "" {
		return c.agentBase
	}
	return fmt.Sprintf("https://agent-runtime.generativeai.%s.oci.oraclecloud.com/20240531", region)
}

// post sends a signed JSON request and returns the response body and status.
// Transport failures come back as *Error with StatusCode 0.
func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		if err := c.signer.Sign(req, payload); err != nil {
			return nil, 0, &Error{Message: err.Error()}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxRequestBodySize))
	if err != nil {
		return nil, resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return body, resp.StatusCode, nil
}

// truncateBody shortens upstream bodies for error messages and logs.
func truncateBody(body []byte) string {
	if len(body) > config.MaxErrorBodyLogLen {
		return string(body[:config.MaxErrorBodyLogLen]) + "..."
	}
	return string(body)
}
