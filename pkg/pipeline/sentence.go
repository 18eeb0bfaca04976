package pipeline

import (
	"strings"
	"sync"
)

// SentenceBuffer accumulates LLM text deltas and emits chunks sized for
// low-latency synthesis: a chunk is released on punctuation, or at a word
// boundary once enough words accumulated.
type SentenceBuffer struct {
	mu          sync.Mutex
	text        strings.Builder
	minWords    int
	punctuation string
}

// NewSentenceBuffer creates a buffer with default chunking thresholds.
func NewSentenceBuffer() *SentenceBuffer {
	return &SentenceBuffer{
		minWords:    5,
		punctuation: ",.!?",
	}
}

// Add appends a delta and returns a chunk ready for synthesis, or ""
// while more text should accumulate.
func (b *SentenceBuffer) Add(delta string) string {
	if delta == "" {
		return ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	startsWithSpace := delta[0] == ' ' || delta[0] == '\n'
	prevContent := b.text.String()
	prevWordCount := len(strings.Fields(prevContent))

	b.text.WriteString(delta)
	content := b.text.String()

	// Punctuation releases everything up to the last mark.
	if strings.ContainsAny(delta, b.punctuation) {
		lastPunct := strings.LastIndexAny(content, b.punctuation)
		if lastPunct >= 0 {
			chunk := strings.TrimSpace(content[:lastPunct+1])
			remainder := strings.TrimSpace(content[lastPunct+1:])
			b.text.Reset()
			if remainder != "" {
				b.text.WriteString(remainder)
			}
			return chunk
		}
	}

	// A delta starting with whitespace confirms the previous word ended,
	// so a full buffer can be released without splitting a word.
	if prevWordCount >= b.minWords && startsWithSpace {
		chunk := strings.TrimSpace(prevContent)
		b.text.Reset()
		b.text.WriteString(strings.TrimLeft(delta, " \n"))
		return chunk
	}

	return ""
}

// Flush returns any remaining buffered text. Call when the LLM stream
// ends.
func (b *SentenceBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	chunk := strings.TrimSpace(b.text.String())
	b.text.Reset()
	return chunk
}

// Reset discards buffered text without returning it. Call on interrupt.
func (b *SentenceBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}
