// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes:   Total and successful request counts
//   - upstream_failures:    Calls the backing platform rejected or dropped
//   - sessions:             Agent session creates, reuses and conflicts
//   - tokens:               Prompt and completion token totals
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	// Request counters
	requests         atomic.Int64
	successes        atomic.Int64
	upstreamFailures atomic.Int64
	dryRunRequests   atomic.Int64
	streamedRequests atomic.Int64

	// Agent session counters
	sessionsCreated  atomic.Int64
	sessionsReused   atomic.Int64
	sessionConflicts atomic.Int64

	// Token counters (actual or estimated, per the usage object)
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startedAt: time.Now()}
}

// RecordRequest records one gateway request and its outcome.
func (mc *MetricsCollector) RecordRequest(success bool) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	} else {
		mc.upstreamFailures.Add(1)
	}
}

// RecordDryRun records a request served without an upstream call.
func (mc *MetricsCollector) RecordDryRun() { mc.dryRunRequests.Add(1) }

// RecordStream records a request answered as a simulated stream.
func (mc *MetricsCollector) RecordStream() { mc.streamedRequests.Add(1) }

// RecordSession records whether an agent session was created or reused.
func (mc *MetricsCollector) RecordSession(reused bool) {
	if reused {
		mc.sessionsReused.Add(1)
	} else {
		mc.sessionsCreated.Add(1)
	}
}

// RecordSessionConflict records an upstream session conflict.
func (mc *MetricsCollector) RecordSessionConflict() { mc.sessionConflicts.Add(1) }

// RecordTokens records token usage reported for one request.
func (mc *MetricsCollector) RecordTokens(prompt, completion int) {
	mc.promptTokens.Add(int64(prompt))
	mc.completionTokens.Add(int64(completion))
}

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	UptimeSeconds    int64 `json:"uptime_seconds"`
	Requests         int64 `json:"requests"`
	Successes        int64 `json:"successes"`
	UpstreamFailures int64 `json:"upstream_failures"`
	DryRunRequests   int64 `json:"dry_run_requests"`
	StreamedRequests int64 `json:"streamed_requests"`
	SessionsCreated  int64 `json:"sessions_created"`
	SessionsReused   int64 `json:"sessions_reused"`
	SessionConflicts int64 `json:"session_conflicts"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// GetSnapshot returns current counter values.
func (mc *MetricsCollector) GetSnapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:    int64(time.Since(mc.startedAt).Seconds()),
		Requests:         mc.requests.Load(),
		Successes:        mc.successes.Load(),
		UpstreamFailures: mc.upstreamFailures.Load(),
		DryRunRequests:   mc.dryRunRequests.Load(),
		StreamedRequests: mc.streamedRequests.Load(),
		SessionsCreated:  mc.sessionsCreated.Load(),
		SessionsReused:   mc.sessionsReused.Load(),
		SessionConflicts: mc.sessionConflicts.Load(),
		PromptTokens:     mc.promptTokens.Load(),
		CompletionTokens: mc.completionTokens.Load(),
	}
}
