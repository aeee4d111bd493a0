// Simulated streaming.
//
// DESIGN: The upstream call is not itself streamed; the full output text is
// known before streaming begins. The Stream exists purely to preserve
// client-side streaming-consumption compatibility: a role announcement, one
// content delta per rune, a terminal chunk with a finish reason, then the
// [DONE] sentinel. The sequence is lazy, finite and non-restartable.
package compose

import (
	"bufio"
	"net/http"
	"time"

	"github.com/ocigw/genai-gateway/internal/utils"
)

// DoneSentinel terminates the event sequence on the wire.
const DoneSentinel = "[DONE]"

// Delta is the incremental part of a streamed chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice carries one delta. FinishReason is null until the terminal chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Chunk is one streamed event in OpenAI chunk format.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// Stream yields the chunk sequence for one response. Not safe for concurrent
// use; a consumed stream cannot be restarted.
type Stream struct {
	id      string
	created int64
	model   string
	runes   []rune
	pos     int
	state   streamState
}

type streamState int

const (
	stateRole streamState = iota
	stateContent
	stateDone
)

// NewStream prepares the simulated stream for the given final text.
func NewStream(model, text string) *Stream {
	return &Stream{
		id:      newID("chatcmpl"),
		created: time.Now().Unix(),
		model:   model,
		runes:   []rune(text),
	}
}

// Next returns the next chunk, or ok=false once the sequence (excluding the
// [DONE] sentinel) is exhausted.
func (s *Stream) Next() (Chunk, bool) {
	switch s.state {
	case stateRole:
		s.state = stateContent
		return s.chunk(Delta{Role: AssistantRole}, nil), true
	case stateContent:
		if s.pos < len(s.runes) {
			delta := Delta{Content: string(s.runes[s.pos])}
			s.pos++
			return s.chunk(delta, nil), true
		}
		s.state = stateDone
		finish := "stop"
		return s.chunk(Delta{}, &finish), true
	default:
		return Chunk{}, false
	}
}

func (s *Stream) chunk(delta Delta, finish *string) Chunk {
	return Chunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []ChunkChoice{{Delta: delta, FinishReason: finish}},
	}
}

// WriteSSE renders the stream as server-sent events, flushing after every
// chunk so proxies deliver them in order, and terminates with the sentinel.
func WriteSSE(w http.ResponseWriter, s *Stream) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)

	flush := func() {
		_ = bw.Flush()
		if flusher != nil {
			flusher.Flush()
		}
	}

	for {
		chunk, ok := s.Next()
		if !ok {
			break
		}
		data, err := utils.MarshalNoEscape(chunk)
		if err != nil {
			continue
		}
		_, _ = bw.WriteString("data: ")
		_, _ = bw.Write(data)
		_, _ = bw.WriteString("\n\n")
		flush()
	}

	_, _ = bw.WriteString("data: " + DoneSentinel + "\n\n")
	flush()
}
