package types

import (
	"encoding/json"
	"testing"
)

func TestTextBlock_MarshalJSON(t *testing.T) {
	block := TextBlock{Type: "text", Text: "Hello, world!"}
	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	expected := `{"type":"text","text":"Hello, world!"}`
	if string(data) != expected {
		t.Errorf("JSON mismatch: got %s, want %s", string(data), expected)
	}
}

func TestImageBlock_MarshalJSON(t *testing.T) {
	block := ImageBlock{
		Type: "image",
		Source: ImageSource{
			Type:      "base64",
			MediaType: "image/png",
			Data:      "iVBORw0KGgo=",
		},
	}
	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if m["type"] != "image" {
		t.Errorf("Type mismatch: got %v", m["type"])
	}
	source := m["source"].(map[string]any)
	if source["type"] != "base64" {
		t.Errorf("Source type mismatch: got %v", source["type"])
	}
}

func TestImageBlock_URL(t *testing.T) {
	block := ImageBlock{
		Type: "image",
		Source: ImageSource{
			Type: "url",
			URL:  "https://example.com/image.png",
		},
	}
	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	source := m["source"].(map[string]any)
	if source["url"] != "https://example.com/image.png" {
		t.Errorf("URL mismatch: got %v", source["url"])
	}
}

func TestUnmarshalContentBlocks(t *testing.T) {
	raw := `[
		{"type":"text","text":"Hello"},
		{"type":"image","source":{"type":"url","url":"https://example.com/img.png"}}
	]`

	blocks, err := UnmarshalContentBlocks([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].BlockType() != "text" {
		t.Errorf("First block type: got %q", blocks[0].BlockType())
	}
	if blocks[1].BlockType() != "image" {
		t.Errorf("Second block type: got %q", blocks[1].BlockType())
	}
}
