package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts when a provider reports no usage.
type TokenCounter interface {
	Count(model, text string) int
}

// ApproxCounter estimates roughly one token per four bytes, and one token
// per CJK rune.
type ApproxCounter struct{}

// Count implements TokenCounter.
func (ApproxCounter) Count(_ string, text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	if runes < len(text)/2 {
		return runes
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// TiktokenCounter counts tokens with the BPE encoding of the target model,
// falling back to cl100k_base and then to ApproxCounter.
type TiktokenCounter struct {
	mu       sync.Mutex
	byModel  map[string]*tiktoken.Tiktoken
	fallback ApproxCounter
}

// NewTiktokenCounter creates a counter that loads encodings lazily.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{byModel: make(map[string]*tiktoken.Tiktoken)}
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoding(model)
	if enc == nil {
		return c.fallback.Count(model, text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.byModel[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		enc = nil
	}
	c.byModel[model] = enc
	return enc
}
