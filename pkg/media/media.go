// Package media provides access to the real-time media server: room
// transport for the voice agent, access-token minting, and the
// room-service control API (create/delete/egress).
package media

import (
	"context"
	"time"
)

// ParticipantKind distinguishes how a participant reached the room.
// Telephony participants get a speech-recognition model tuned for
// phone-call audio.
type ParticipantKind string

const (
	ParticipantStandard ParticipantKind = "standard"
	ParticipantSIP      ParticipantKind = "sip"
)

// Participant is a remote room member.
type Participant struct {
	Identity string
	Name     string
	Kind     ParticipantKind
}

// ChatMessage is an out-of-band text message received on the room's chat
// channel.
type ChatMessage struct {
	From      string
	Text      string
	Timestamp time.Time
}

// Room is the session's media transport. Connect must succeed before any
// other call; Close is idempotent.
type Room interface {
	// Name returns the room identifier.
	Name() string

	// Connect establishes the media-server connection.
	Connect(ctx context.Context) error

	// WaitForParticipant blocks until the first remote participant joins.
	WaitForParticipant(ctx context.Context) (Participant, error)

	// AudioFrames yields inbound participant audio (PCM frames). The
	// channel closes when the room disconnects.
	AudioFrames() <-chan []byte

	// PublishAudio sends a synthesized audio frame to the room.
	PublishAudio(frame []byte) error

	// PublishVideoFrame sends a video keepalive frame to the room.
	PublishVideoFrame(frame []byte) error

	// Chat yields inbound chat messages.
	Chat() <-chan ChatMessage

	// SendChat posts a text message to the room's chat channel.
	SendChat(text string) error

	// Close tears down the connection.
	Close() error
}
