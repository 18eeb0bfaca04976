package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hireloop/interviewd/pkg/core/types"
)

const contextPrefix = "Context:\n"

// Embedder produces a vector embedding for a text with a fixed target
// dimensionality. Satisfied by *llm.Gemini.
type Embedder interface {
	Embed(ctx context.Context, text, model string, dimensions int) ([]float32, error)
}

// EnricherConfig configures the per-turn enrichment step.
type EnricherConfig struct {
	// EmbedModel is the embedding model identifier.
	EmbedModel string
	// Dimensions is the embedding dimensionality; must match the index.
	Dimensions int
	// Timeout bounds the embedding round trip plus index query per turn.
	Timeout time.Duration
}

// Enricher splices retrieved grounding context into a conversation before
// each LLM turn. All collaborators are injected once at process start.
type Enricher struct {
	cfg      EnricherConfig
	embedder Embedder
	index    Index
	store    *FragmentStore
	logger   *slog.Logger
}

// NewEnricher creates the enrichment step.
func NewEnricher(cfg EnricherConfig, embedder Embedder, index Index, store *FragmentStore, logger *slog.Logger) *Enricher {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "bert-embeddings"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 2048
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{cfg: cfg, embedder: embedder, index: index, store: store, logger: logger}
}

// Enrich reads the trailing user message, retrieves the closest indexed
// fragment and splices it as a synthetic assistant message immediately
// before the trailing user message. On a store miss the context is left
// unmodified. Any returned error means enrichment was skipped; the caller
// proceeds with the turn unaugmented.
//
// Only the splice point is touched: no other message is mutated, and
// repeating the call with the same trailing user message does not insert a
// second context message.
func (e *Enricher) Enrich(ctx context.Context, chatCtx *types.ChatContext) error {
	last := chatCtx.Last()
	if last == nil {
		e.logger.Error("enrichment skipped: empty conversation context")
		return fmt.Errorf("rag: empty conversation context")
	}
	if last.Role != types.RoleUser {
		// Trailing message should always be the user's turn here. Two
		// enrichment calls without an intervening user turn fall into this
		// branch and skip rather than guess.
		e.logger.Error("enrichment skipped: trailing message is not a user turn", "role", last.Role)
		return fmt.Errorf("rag: trailing message role is %q, want %q", last.Role, types.RoleUser)
	}

	query := last.TextContent()
	if strings.TrimSpace(query) == "" {
		e.logger.Warn("enrichment skipped: trailing user message has no text")
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	vec, err := e.embedder.Embed(embedCtx, query, e.cfg.EmbedModel, e.cfg.Dimensions)
	if err != nil {
		e.logger.Warn("enrichment skipped: embedding failed", "error", err)
		return fmt.Errorf("rag: embed: %w", err)
	}

	results, err := e.index.Query(vec, 1)
	if err != nil {
		e.logger.Warn("enrichment skipped: index query failed", "error", err)
		return fmt.Errorf("rag: query: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	fragment, ok := e.store.Lookup(results[0].ID)
	if !ok || fragment == "" {
		return nil
	}

	contextText := contextPrefix + fragment
	if n := chatCtx.Len(); n >= 2 {
		prev := chatCtx.Messages[n-2]
		if prev.Role == types.RoleAssistant && prev.TextContent() == contextText {
			// Same splice already present for this user message.
			return nil
		}
	}

	e.logger.Info("enriching with retrieved context", "fragment_id", results[0].ID)
	chatCtx.InsertBeforeLast(types.Message{Role: types.RoleAssistant, Content: contextText})
	return nil
}
