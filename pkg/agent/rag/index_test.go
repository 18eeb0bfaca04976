package rag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_QueryReturnsNearest(t *testing.T) {
	idx, err := NewFlatIndex(
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Query([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("nearest = %s, want a", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("second = %s, want c", results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered best first")
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, err := NewFlatIndex([]string{"a"}, [][]float32{{1, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Query([]float32{1, 0}, 1); err == nil {
		t.Error("want dimension mismatch error")
	}
}

func TestLoadIndexAndFragments(t *testing.T) {
	dir := t.TempDir()

	indexPath := filepath.Join(dir, "index.json")
	entries := []indexEntry{
		{ID: "q1", Vector: []float32{0.1, 0.2}},
		{ID: "q2", Vector: []float32{0.3, 0.4}},
	}
	data, _ := json.Marshal(entries)
	if err := os.WriteFile(indexPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := LoadIndex(indexPath)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if idx.Dimensions() != 2 {
		t.Errorf("dims = %d, want 2", idx.Dimensions())
	}

	fragPath := filepath.Join(dir, "fragments.json")
	if err := os.WriteFile(fragPath, []byte(`{"q1":"first","q2":"second"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := LoadFragments(fragPath)
	if err != nil {
		t.Fatalf("load fragments: %v", err)
	}
	if text, ok := store.Lookup("q2"); !ok || text != "second" {
		t.Errorf("lookup q2 = %q, %v", text, ok)
	}
}

func TestLoadIndex_RejectsMixedDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a","vector":[1,2]},{"id":"b","vector":[1]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIndex(path); err == nil {
		t.Error("want mixed-dimension error")
	}
}
