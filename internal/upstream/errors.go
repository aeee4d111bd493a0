package upstream

import (
	"errors"
	"fmt"
)

// ErrSessionConflict signals that the upstream reports the agent session id
// as no longer valid. The retry controller recovers from it exactly once.
var ErrSessionConflict = errors.New("agent session no longer valid")

// Error is a soft upstream failure: network trouble, a non-2xx status, or a
// response missing an expected field. Callers decide whether to surface it.
type Error struct {
	StatusCode int // 0 for transport-level failures
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream: status %d: %s", e.StatusCode, e.Message)
	}
	return "upstream: " + e.Message
}
