package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Signaling envelope exchanged with the media server. Audio travels as
// binary websocket frames; everything else is JSON.
type envelope struct {
	Type string `json:"type"`

	// participant_joined
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`

	// chat
	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`

	// video_frame
	Data string `json:"data,omitempty"` // base64
}

// WSRoomConfig configures a websocket room connection.
type WSRoomConfig struct {
	// URL is the media server websocket endpoint, e.g. ws://host:7880/rtc.
	URL string
	// Room is the room name to join.
	Room string
	// Token is the access token authorizing the join.
	Token string
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// PingInterval keeps the connection alive. Zero disables pings.
	PingInterval time.Duration

	Logger *slog.Logger
}

// WSRoom is a Room over a websocket signaling connection: JSON control
// messages plus binary PCM audio frames.
type WSRoom struct {
	cfg WSRoomConfig
	log *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	audio chan []byte
	chat  chan ChatMessage
	join  chan Participant

	done      chan struct{}
	closeOnce sync.Once
}

// NewWSRoom creates an unconnected room client.
func NewWSRoom(cfg WSRoomConfig) *WSRoom {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &WSRoom{
		cfg:   cfg,
		log:   log,
		audio: make(chan []byte, 100),
		chat:  make(chan ChatMessage, 16),
		join:  make(chan Participant, 4),
		done:  make(chan struct{}),
	}
}

func (r *WSRoom) Name() string { return r.cfg.Room }

// Connect dials the media server and starts the read loop.
func (r *WSRoom) Connect(ctx context.Context) error {
	u, err := url.Parse(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("media: parse url: %w", err)
	}
	q := u.Query()
	q.Set("room", r.cfg.Room)
	q.Set("access_token", r.cfg.Token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("media: connect room %s: %w", r.cfg.Room, err)
	}
	r.conn = conn

	go r.readLoop()
	if r.cfg.PingInterval > 0 {
		go r.pingLoop()
	}
	return nil
}

// WaitForParticipant blocks until the first remote participant joins.
func (r *WSRoom) WaitForParticipant(ctx context.Context) (Participant, error) {
	select {
	case p := <-r.join:
		return p, nil
	case <-r.done:
		return Participant{}, fmt.Errorf("media: room %s closed while waiting for participant", r.cfg.Room)
	case <-ctx.Done():
		return Participant{}, fmt.Errorf("media: wait for participant: %w", ctx.Err())
	}
}

func (r *WSRoom) AudioFrames() <-chan []byte { return r.audio }

func (r *WSRoom) Chat() <-chan ChatMessage { return r.chat }

// PublishAudio sends a binary PCM frame.
func (r *WSRoom) PublishAudio(frame []byte) error {
	return r.write(websocket.BinaryMessage, frame)
}

// PublishVideoFrame sends a video frame as a base64 JSON message.
func (r *WSRoom) PublishVideoFrame(frame []byte) error {
	data, err := json.Marshal(envelope{
		Type: "video_frame",
		Data: base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		return err
	}
	return r.write(websocket.TextMessage, data)
}

// SendChat posts a chat message to the room.
func (r *WSRoom) SendChat(text string) error {
	data, err := json.Marshal(envelope{Type: "chat", Text: text})
	if err != nil {
		return err
	}
	return r.write(websocket.TextMessage, data)
}

func (r *WSRoom) write(messageType int, data []byte) error {
	select {
	case <-r.done:
		return fmt.Errorf("media: room %s closed", r.cfg.Room)
	default:
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("media: write: %w", err)
	}
	return nil
}

// Close tears down the connection. Idempotent.
func (r *WSRoom) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		if r.conn != nil {
			r.writeMu.Lock()
			r.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			r.writeMu.Unlock()
			r.conn.Close()
		}
	})
	return nil
}

func (r *WSRoom) readLoop() {
	defer close(r.audio)
	defer close(r.chat)

	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				r.log.Warn("media read loop ended", "room", r.cfg.Room, "error", err)
				r.Close()
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			select {
			case r.audio <- data:
			case <-r.done:
				return
			default:
				// Inbound buffer full: drop the frame rather than stall
				// the read loop.
			}

		case websocket.TextMessage:
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				r.log.Warn("media: bad signaling message", "error", err)
				continue
			}
			r.handleEnvelope(env)
		}
	}
}

func (r *WSRoom) handleEnvelope(env envelope) {
	switch env.Type {
	case "participant_joined":
		kind := ParticipantStandard
		if env.Kind == string(ParticipantSIP) {
			kind = ParticipantSIP
		}
		p := Participant{Identity: env.Identity, Name: env.Name, Kind: kind}
		select {
		case r.join <- p:
		case <-r.done:
		default:
		}

	case "chat":
		msg := ChatMessage{From: env.From, Text: env.Text, Timestamp: time.Now()}
		select {
		case r.chat <- msg:
		case <-r.done:
		default:
			r.log.Warn("media: chat buffer full, message dropped", "from", env.From)
		}

	default:
		// Unknown control messages are ignored for forward compatibility.
	}
}

func (r *WSRoom) pingLoop() {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.writeMu.Lock()
			err := r.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			r.writeMu.Unlock()
			if err != nil {
				r.log.Warn("media: ping failed", "error", err)
				return
			}
		}
	}
}
