// Package rag implements the retrieval-augmented context enrichment step:
// a preloaded vector index and fragment store queried once per user turn
// to splice grounding context into the conversation before the LLM call.
package rag

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// QueryResult is a single nearest-neighbor match.
type QueryResult struct {
	ID    string
	Score float64
}

// Index answers nearest-neighbor queries over preloaded fragment vectors.
type Index interface {
	Query(vec []float32, k int) ([]QueryResult, error)
}

type indexEntry struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// FlatIndex is a read-only exhaustive-scan index over the persisted
// artifact. Corpora here are interview question banks of a few thousand
// fragments, small enough that a scan beats maintaining index structure.
type FlatIndex struct {
	entries []indexEntry
	dims    int
}

// LoadIndex reads a persisted index artifact: a JSON array of
// {id, vector} entries with uniform dimensionality.
func LoadIndex(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rag: read index %s: %w", path, err)
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("rag: parse index %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("rag: index %s is empty", path)
	}

	dims := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("rag: index %s: entry %s has %d dims, want %d",
				path, e.ID, len(e.Vector), dims)
		}
	}
	return &FlatIndex{entries: entries, dims: dims}, nil
}

// NewFlatIndex builds an index from in-memory vectors. Used in tests and
// by the index-build tooling.
func NewFlatIndex(ids []string, vectors [][]float32) (*FlatIndex, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("rag: %d ids but %d vectors", len(ids), len(vectors))
	}
	idx := &FlatIndex{}
	for i, id := range ids {
		if idx.dims == 0 {
			idx.dims = len(vectors[i])
		}
		if len(vectors[i]) != idx.dims {
			return nil, fmt.Errorf("rag: entry %s has %d dims, want %d", id, len(vectors[i]), idx.dims)
		}
		idx.entries = append(idx.entries, indexEntry{ID: id, Vector: vectors[i]})
	}
	return idx, nil
}

// Dimensions returns the index vector dimensionality.
func (x *FlatIndex) Dimensions() int { return x.dims }

// Query returns the k nearest entries by cosine similarity, best first.
func (x *FlatIndex) Query(vec []float32, k int) ([]QueryResult, error) {
	if len(vec) != x.dims {
		return nil, fmt.Errorf("rag: query has %d dims, index has %d", len(vec), x.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]QueryResult, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, QueryResult{ID: e.ID, Score: cosine(vec, e.Vector)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
