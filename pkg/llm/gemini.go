package llm

import (
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/genai"

	"github.com/hireloop/interviewd/pkg/core/types"
)

// Gemini is a Client backed by the Gemini API. It also serves as the
// embedding provider for retrieval.
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini creates a Gemini client. model is used when a request does not
// name one.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &Gemini{client: client, defaultModel: model}, nil
}

func (g *Gemini) model(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return g.defaultModel
}

func (g *Gemini) convert(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		text := msg.TranscriptText()
		if text == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	return contents, cfg
}

// Complete sends a non-streaming request.
func (g *Gemini) Complete(ctx context.Context, req *Request) (*Response, error) {
	contents, cfg := g.convert(req)
	resp, err := g.client.Models.GenerateContent(ctx, g.model(req), contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
	}

	out := &Response{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

type geminiChunk struct {
	text string
	err  error
}

type geminiStream struct {
	ch     chan geminiChunk
	cancel context.CancelFunc

	mu    sync.Mutex
	usage Usage
}

func (s *geminiStream) Next() (string, error) {
	chunk, ok := <-s.ch
	if !ok {
		return "", io.EOF
	}
	if chunk.err != nil {
		return "", chunk.err
	}
	return chunk.text, nil
}

func (s *geminiStream) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *geminiStream) setUsage(u Usage) {
	s.mu.Lock()
	s.usage = u
	s.mu.Unlock()
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

// StreamComplete sends a streaming request. Deltas arrive as they are
// generated; usage is available once the stream ends.
func (g *Gemini) StreamComplete(ctx context.Context, req *Request) (Stream, error) {
	contents, cfg := g.convert(req)

	streamCtx, cancel := context.WithCancel(ctx)
	s := &geminiStream{ch: make(chan geminiChunk, 16), cancel: cancel}

	go func() {
		defer close(s.ch)
		for resp, err := range g.client.Models.GenerateContentStream(streamCtx, g.model(req), contents, cfg) {
			if err != nil {
				select {
				case s.ch <- geminiChunk{err: err}:
				case <-streamCtx.Done():
				}
				return
			}
			if u := resp.UsageMetadata; u != nil {
				s.setUsage(Usage{
					PromptTokens:     int(u.PromptTokenCount),
					CompletionTokens: int(u.CandidatesTokenCount),
				})
			}
			if text := resp.Text(); text != "" {
				select {
				case s.ch <- geminiChunk{text: text}:
				case <-streamCtx.Done():
					return
				}
			}
		}
	}()

	return s, nil
}

// Embed returns a vector embedding of text with the requested output
// dimensionality.
func (g *Gemini) Embed(ctx context.Context, text, model string, dimensions int) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(dimensions))
	}

	resp, err := g.client.Models.EmbedContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("llm: embed: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}
