// Package config loads gateway configuration from the environment and the
// upstream credentials file.
//
// DESIGN: Two sources, both read once at startup:
//   - Environment (optionally seeded from .env by main): listen address,
//     shared API key, models file path, telemetry database path.
//   - Credentials file: flat key=value lines (tenancy, user, fingerprint,
//     key_file, pass_phrase, test_mode) owned by the platform operator.
//
// The models YAML file is deliberately NOT loaded here: the registry re-reads
// it on every resolution so operators can edit it without a restart.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	Server      ServerConfig
	Credentials Credentials
	ModelsPath  string // YAML registry source, re-read per lookup
	APIKey      string // shared secret; empty disables the check
	TelemetryDB string // sqlite path; empty disables request tracking
	SessionTTL  time.Duration
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Credentials identifies the gateway against the upstream platform.
// TestMode (or any load failure) switches the invoker to dry-run mode.
type Credentials struct {
	Tenancy     string
	User        string
	Fingerprint string
	KeyFile     string
	KeyContent  string
	PassPhrase  string
	TestMode    bool
}

// Configured reports whether the credentials are complete enough to sign
// upstream requests.
func (c Credentials) Configured() bool {
	if c.TestMode {
		return false
	}
	return c.Tenancy != "" && c.User != "" && c.Fingerprint != "" &&
		(c.KeyFile != "" || c.KeyContent != "")
}

// Load builds a Config from the environment. Missing credentials are not an
// error: the gateway falls back to dry-run mode.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:         envOr("GATEWAY_ADDR", DefaultListenAddr),
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		ModelsPath:  os.Getenv("GATEWAY_MODELS_FILE"),
		APIKey:      os.Getenv("API_KEY"),
		TelemetryDB: os.Getenv("GATEWAY_TELEMETRY_DB"),
		SessionTTL:  DefaultSessionTTL,
	}

	if v := os.Getenv("GATEWAY_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GATEWAY_SESSION_TTL %q: %w", v, err)
		}
		cfg.SessionTTL = d
	}

	credsPath := envOr("GATEWAY_CREDENTIALS_FILE", "/home/app/credentials.conf")
	creds, err := LoadCredentials(credsPath)
	if err != nil {
		// Absorbed: the invoker runs in dry-run mode without credentials.
		creds = Credentials{TestMode: true}
	}
	cfg.Credentials = creds

	return cfg, nil
}

// LoadCredentials parses a flat key=value credentials file. Blank lines and
// '#' comments are skipped.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials file: %w", err)
	}
	defer func() { _ = f.Close() }()

	kv := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("credentials file: %w", err)
	}

	return Credentials{
		Tenancy:     kv["tenancy"],
		User:        kv["user"],
		Fingerprint: kv["fingerprint"],
		KeyFile:     kv["key_file"],
		KeyContent:  kv["key_content"],
		PassPhrase:  kv["pass_phrase"],
		TestMode:    strings.EqualFold(kv["test_mode"], "true"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
