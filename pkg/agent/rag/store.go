package rag

import (
	"encoding/json"
	"fmt"
	"os"
)

// FragmentStore maps fragment identifiers to retrievable reference text.
// Preloaded at process start; read-only afterwards.
type FragmentStore struct {
	fragments map[string]string
}

// LoadFragments reads a persisted id→text JSON mapping.
func LoadFragments(path string) (*FragmentStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rag: read fragments %s: %w", path, err)
	}

	var fragments map[string]string
	if err := json.Unmarshal(data, &fragments); err != nil {
		return nil, fmt.Errorf("rag: parse fragments %s: %w", path, err)
	}
	return &FragmentStore{fragments: fragments}, nil
}

// NewFragmentStore builds a store from an in-memory mapping.
func NewFragmentStore(fragments map[string]string) *FragmentStore {
	return &FragmentStore{fragments: fragments}
}

// Lookup returns the fragment text for id.
func (s *FragmentStore) Lookup(id string) (string, bool) {
	text, ok := s.fragments[id]
	return text, ok
}

// Len returns the number of stored fragments.
func (s *FragmentStore) Len() int { return len(s.fragments) }
