// Package monitoring - telemetry.go persists per-request records to SQLite.
//
// DESIGN: Tracker appends one row per gateway request so operators can query
// traffic after the fact (which models, which channels, token volumes).
// Persistence is strictly best-effort: a write failure is logged and the
// request proceeds. A nil Tracker is valid and records nothing.
package monitoring

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// RequestRecord describes one completed gateway request.
type RequestRecord struct {
	Timestamp        time.Time
	Route            string
	Model            string
	Channel          string
	ClientID         string
	Status           int
	Streamed         bool
	DryRun           bool
	PromptTokens     int
	CompletionTokens int
	DurationMs       int64
}

// Tracker writes request records to a SQLite database.
type Tracker struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	route TEXT NOT NULL,
	model TEXT,
	channel TEXT,
	client_id TEXT,
	status INTEGER NOT NULL,
	streamed INTEGER NOT NULL,
	dry_run INTEGER NOT NULL,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_requests_ts ON requests(ts);
`

// NewTracker opens (creating if needed) the database at path. An empty path
// disables persistence and returns a nil tracker.
func NewTracker(path string) (*Tracker, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Tracker{db: db}, nil
}

// RecordRequest persists one request record. Failures are logged, not returned.
func (t *Tracker) RecordRequest(rec RequestRecord) {
	if t == nil || t.db == nil {
		return
	}
	_, err := t.db.Exec(
		`INSERT INTO requests (ts, route, model, channel, client_id, status, streamed, dry_run, prompt_tokens, completion_tokens, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Route, rec.Model, rec.Channel, rec.ClientID, rec.Status,
		boolInt(rec.Streamed), boolInt(rec.DryRun),
		rec.PromptTokens, rec.CompletionTokens, rec.DurationMs,
	)
	if err != nil {
		log.Warn().Err(err).Str("route", rec.Route).Msg("telemetry: failed to persist request record")
	}
}

// CountRequests returns the number of persisted records. Used by the stats
// endpoint and by tests.
func (t *Tracker) CountRequests() (int64, error) {
	if t == nil || t.db == nil {
		return 0, nil
	}
	var n int64
	err := t.db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&n)
	return n, err
}

// Close releases the underlying database handle.
func (t *Tracker) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
