package types

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is the interface for message content types.
// Conversation messages carry either plain text or a mix of text and
// media references (images shared during an interview).
type ContentBlock interface {
	BlockType() string
}

// TextBlock represents text content.
type TextBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

func (t TextBlock) BlockType() string { return "text" }

// ImageBlock represents an opaque image reference.
type ImageBlock struct {
	Type   string      `json:"type"` // "image"
	Source ImageSource `json:"source"`
}

func (t ImageBlock) BlockType() string { return "image" }

// ImageSource contains the image data or reference.
type ImageSource struct {
	Type      string `json:"type"`                 // "base64" or "url"
	MediaType string `json:"media_type,omitempty"` // "image/png", etc.
	Data      string `json:"data,omitempty"`       // base64 data
	URL       string `json:"url,omitempty"`        // URL reference
}

// UnmarshalContentBlocks parses a JSON array into typed content blocks.
func UnmarshalContentBlocks(data []byte) ([]ContentBlock, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}

	blocks := make([]ContentBlock, 0, len(raws))
	for i, raw := range raws {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}

		switch probe.Type {
		case "text":
			var b TextBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("content block %d: %w", i, err)
			}
			blocks = append(blocks, b)
		case "image":
			var b ImageBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("content block %d: %w", i, err)
			}
			blocks = append(blocks, b)
		default:
			return nil, fmt.Errorf("content block %d: unknown type %q", i, probe.Type)
		}
	}
	return blocks, nil
}
