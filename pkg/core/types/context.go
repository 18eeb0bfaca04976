package types

import "time"

// ChatContext is the ordered conversation state for one session.
// A system message, if present, is always first; the remaining messages
// follow chronological turn order. The context is not goroutine-safe:
// the pipeline serializes all mutation on the session's turn path.
type ChatContext struct {
	Messages []Message
}

// NewChatContext creates an empty conversation context.
func NewChatContext() *ChatContext {
	return &ChatContext{}
}

// Append adds a plain-text message and returns the context for chaining.
// A system message is placed first regardless of when it is appended.
func (c *ChatContext) Append(role, text string) *ChatContext {
	msg := Message{Role: role, Content: text, Timestamp: time.Now()}
	if role == RoleSystem && len(c.Messages) > 0 && c.Messages[0].Role != RoleSystem {
		c.Messages = append([]Message{msg}, c.Messages...)
		return c
	}
	c.Messages = append(c.Messages, msg)
	return c
}

// AppendMessage adds a pre-built message preserving its content shape.
func (c *ChatContext) AppendMessage(msg Message) *ChatContext {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.Messages = append(c.Messages, msg)
	return c
}

// Last returns a pointer to the most recent message, or nil if empty.
func (c *ChatContext) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// InsertBeforeLast splices a message immediately before the trailing
// message, so the sequence becomes ..., msg, last.
func (c *ChatContext) InsertBeforeLast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if len(c.Messages) == 0 {
		c.Messages = append(c.Messages, msg)
		return
	}
	last := c.Messages[len(c.Messages)-1]
	c.Messages = append(c.Messages[:len(c.Messages)-1], msg, last)
}

// Copy returns a shallow copy with an independent message slice.
// Used by the out-of-band chat relay so a direct LLM call never mutates
// the live context.
func (c *ChatContext) Copy() *ChatContext {
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	return &ChatContext{Messages: messages}
}

// Len returns the number of messages.
func (c *ChatContext) Len() int { return len(c.Messages) }
