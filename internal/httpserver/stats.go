// Package httpserver - stats.go exposes liveness and operational metrics.
package httpserver

import (
	"net/http"
	"time"

	"github.com/ocigw/genai-gateway/internal/monitoring"
)

// handleLiveness returns gateway health status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"time":    time.Now().Format(time.RFC3339),
		"dry_run": s.client.DryRun(),
	})
}

// StatsResponse is the JSON response for GET /stats.
type StatsResponse struct {
	Counters          monitoring.Snapshot `json:"counters"`
	PersistedRequests int64               `json:"persisted_requests"`
}

// handleStats returns aggregated metrics as JSON.
// Restricted to localhost to prevent external access to operational metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	resp := StatsResponse{Counters: s.metrics.GetSnapshot()}
	if n, err := s.tracker.CountRequests(); err == nil {
		resp.PersistedRequests = n
	}
	writeJSON(w, resp)
}
