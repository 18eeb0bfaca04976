// Package llm defines the language-model client used by the voice pipeline,
// the chat relay, and post-call transcript analysis.
package llm

import (
	"context"

	"github.com/hireloop/interviewd/pkg/core/types"
)

// Request is a single model invocation.
type Request struct {
	Model       string
	System      string
	Messages    []types.Message
	MaxTokens   int
	Temperature *float64
}

// Usage carries token counts reported by the provider for one invocation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is a non-streaming completion.
type Response struct {
	Text  string
	Usage Usage
}

// Stream yields response text deltas.
type Stream interface {
	// Next returns the next text delta. Returns "", io.EOF when done.
	Next() (string, error)

	// Usage returns provider-reported token counts. Valid after Next has
	// returned io.EOF; zero before that.
	Usage() Usage

	// Close releases resources.
	Close() error
}

// Client is the interface for making LLM requests.
type Client interface {
	// Complete sends a non-streaming request.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// StreamComplete sends a streaming request.
	StreamComplete(ctx context.Context, req *Request) (Stream, error)
}
