// Token counting for dry-run usage records.
package upstream

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ocigw/genai-gateway/internal/config"
)

// TokenCounter counts tokens with tiktoken, falling back to a chars/4
// estimate when the encoding cannot be initialized (e.g. offline).
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter creates a lazy token counter.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	tc.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tc.enc = enc
		}
	})
	if tc.enc != nil {
		return len(tc.enc.Encode(text, nil, nil))
	}
	n := len(text) / config.TokenEstimateRatio
	if n == 0 {
		n = 1
	}
	return n
}
