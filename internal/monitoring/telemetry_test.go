package monitoring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	tr, err := NewTracker(path)
	require.NoError(t, err)
	require.NotNil(t, tr)
	defer func() { _ = tr.Close() }()

	tr.RecordRequest(RequestRecord{
		Timestamp:        time.Now(),
		Route:            "/v1/chat/completions",
		Model:            "gpt5",
		Status:           200,
		PromptTokens:     12,
		CompletionTokens: 7,
		DurationMs:       130,
	})
	tr.RecordRequest(RequestRecord{
		Timestamp: time.Now(),
		Route:     "/genai-agent/chat",
		Channel:   "slack",
		ClientID:  "u1",
		Status:    502,
		DryRun:    true,
	})

	n, err := tr.CountRequests()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTracker_EmptyPathDisablesPersistence(t *testing.T) {
	tr, err := NewTracker("")
	require.NoError(t, err)
	assert.Nil(t, tr)

	// Nil tracker is a no-op, not a panic.
	tr.RecordRequest(RequestRecord{Route: "/v1/chat/completions"})
	n, err := tr.CountRequests()
	require.NoError(t, err)
	assert.Zero(t, n)
}
