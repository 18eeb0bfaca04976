package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// Content is either a string or a []ContentBlock mixing text and media.
type Message struct {
	Role      string    `json:"role"`
	Content   any       `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// MarshalJSON handles the flexible Content field.
func (m Message) MarshalJSON() ([]byte, error) {
	type rawMessage struct {
		Role      string    `json:"role"`
		Content   any       `json:"content"`
		Timestamp time.Time `json:"timestamp,omitempty"`
	}

	var content any
	switch c := m.Content.(type) {
	case string:
		content = c
	case ContentBlock:
		content = []ContentBlock{c}
	case []ContentBlock:
		content = c
	default:
		content = m.Content
	}

	return json.Marshal(rawMessage{Role: m.Role, Content: content, Timestamp: m.Timestamp})
}

// UnmarshalJSON handles flexible Content parsing.
func (m *Message) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		Role      string          `json:"role"`
		Content   json.RawMessage `json:"content"`
		Timestamp time.Time       `json:"timestamp"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Timestamp = raw.Timestamp

	var str string
	if err := json.Unmarshal(raw.Content, &str); err == nil {
		m.Content = str
		return nil
	}

	blocks, err := UnmarshalContentBlocks(raw.Content)
	if err != nil {
		return err
	}
	m.Content = blocks
	return nil
}

// ContentBlocks returns Content as []ContentBlock regardless of input type.
func (m *Message) ContentBlocks() []ContentBlock {
	switch c := m.Content.(type) {
	case string:
		return []ContentBlock{TextBlock{Type: "text", Text: c}}
	case ContentBlock:
		return []ContentBlock{c}
	case []ContentBlock:
		return c
	default:
		return nil
	}
}

// TextContent returns the message text, concatenating text blocks if the
// content is structured. Media blocks contribute nothing.
func (m *Message) TextContent() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	var sb strings.Builder
	for _, block := range m.ContentBlocks() {
		if tb, ok := block.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// TranscriptText renders the message for transcript logging: text blocks
// are joined with newlines and media blocks collapse to a placeholder.
func (m *Message) TranscriptText() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	var parts []string
	for _, block := range m.ContentBlocks() {
		switch b := block.(type) {
		case TextBlock:
			parts = append(parts, b.Text)
		case ImageBlock:
			parts = append(parts, "[image]")
		default:
			parts = append(parts, "[content]")
		}
	}
	return strings.Join(parts, "\n")
}
