// Package translate converts OpenAI-style chat messages into the upstream
// backend's message representation.
//
// DESIGN: Content arrives either as a plain string or as a list of typed
// parts. The normalizer preserves part order, drops empty text parts, and
// inlines remote images as data URIs because the upstream backend cannot
// dereference URLs itself. Role mapping is deliberately lenient: unrecognized
// roles become USER instead of failing the request.
package translate

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// Canonical backend roles.
const (
	RoleSystem    = "SYSTEM"
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Part content types on the wire to the backend.
const (
	PartText  = "TEXT"
	PartImage = "IMAGE"
)

// Part is one content block of a backend message.
type Part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Message is the backend message representation.
type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// Normalizer converts client messages to backend messages.
type Normalizer struct {
	images *ImageFetcher
}

// NewNormalizer creates a normalizer using the given image fetcher.
// A nil fetcher forwards image URLs untouched.
func NewNormalizer(images *ImageFetcher) *Normalizer {
	return &Normalizer{images: images}
}

// Normalize converts raw OpenAI messages (as a JSON array) into backend
// messages. Each element has a role and string-or-parts content.
func (n *Normalizer) Normalize(ctx context.Context, messages []gjson.Result) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		msg := Message{
			Role:    MapRole(m.Get("role").String()),
			Content: n.normalizeContent(ctx, m.Get("content")),
		}
		out = append(out, msg)
	}
	return out
}

// normalizeContent converts one message's content field into ordered parts.
func (n *Normalizer) normalizeContent(ctx context.Context, content gjson.Result) []Part {
	if content.Type == gjson.String {
		return []Part{{Type: PartText, Text: content.String()}}
	}
	if !content.IsArray() {
		// Anything else (number, bool, object) is stringified, matching the
		// leniency of the rest of the pipeline.
		if content.Exists() {
			return []Part{{Type: PartText, Text: content.String()}}
		}
		return []Part{{Type: PartText, Text: ""}}
	}

	var parts []Part
	for _, p := range content.Array() {
		switch {
		case p.Type == gjson.String:
			if p.String() != "" {
				parts = append(parts, Part{Type: PartText, Text: p.String()})
			}
		case p.Get("type").String() == "text":
			if text := p.Get("text").String(); text != "" {
				parts = append(parts, Part{Type: PartText, Text: text})
			}
		case p.Get("type").String() == "image_url":
			url := p.Get("image_url.url").String()
			if url == "" {
				url = p.Get("image_url").String()
			}
			if url == "" {
				continue
			}
			parts = append(parts, Part{Type: PartImage, ImageURL: n.inline(ctx, url)})
		}
	}
	if parts == nil {
		parts = []Part{{Type: PartText, Text: ""}}
	}
	return parts
}

// inline converts a remote image URL to a data URI. Failures degrade to the
// original URL rather than aborting the request.
func (n *Normalizer) inline(ctx context.Context, url string) string {
	if n.images == nil {
		return url
	}
	return n.images.Inline(ctx, url)
}

// FlattenText concatenates all textual content of the given messages into a
// single string, one line per text block. Used on the agent path, which only
// accepts a flat user message.
func FlattenText(messages []gjson.Result) string {
	var lines []string
	for _, m := range messages {
		content := m.Get("content")
		if content.Type == gjson.String {
			if s := content.String(); s != "" {
				lines = append(lines, s)
			}
			continue
		}
		if content.IsArray() {
			for _, p := range content.Array() {
				switch {
				case p.Type == gjson.String:
					if p.String() != "" {
						lines = append(lines, p.String())
					}
				case p.Get("type").String() == "text":
					if text := p.Get("text").String(); text != "" {
						lines = append(lines, text)
					}
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

// MapRole maps a client role string onto the three canonical backend roles.
// Matching is case-insensitive; anything unrecognized becomes USER.
func MapRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "system":
		return RoleSystem
	case "assistant":
		return RoleAssistant
	case "user":
		return RoleUser
	default:
		return RoleUser
	}
}
