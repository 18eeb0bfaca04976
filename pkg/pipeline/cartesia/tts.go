// Package cartesia implements streaming text-to-speech against
// Cartesia's WebSocket API using continuation contexts, so sentence
// chunks synthesize with consistent prosody.
package cartesia

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hireloop/interviewd/pkg/pipeline"
)

const (
	wsURL      = "wss://api.cartesia.ai/tts/websocket"
	apiVersion = "2025-04-16"
	modelID    = "sonic-3"
)

// TTS opens streaming synthesis sessions.
type TTS struct {
	apiKey string
}

// New creates a Cartesia TTS provider.
func New(apiKey string) *TTS {
	return &TTS{apiKey: apiKey}
}

// NewStream connects a synthesis session. Each SendText call continues
// the same Cartesia context; final=true closes it and drains remaining
// audio.
func (c *TTS) NewStream(ctx context.Context, opts pipeline.TTSOptions) (pipeline.TTSStream, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("cartesia: parse url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("cartesia_version", apiVersion)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia: connect: %w", err)
	}

	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}
	encoding := opts.Format
	if encoding == "" {
		encoding = "pcm_s16le"
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &stream{
		conn:      conn,
		voice:     opts.Voice,
		encoding:  encoding,
		rate:      sampleRate,
		contextID: nextContextID(),
		audio:     make(chan []byte, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.readLoop()
	return s, nil
}

var contextCounter atomic.Uint64

func nextContextID() string {
	return fmt.Sprintf("ctx_%d", contextCounter.Add(1))
}

type synthesisRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	ContextID    string       `json:"context_id"`
	Continue     bool         `json:"continue"`
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type synthesisResponse struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type stream struct {
	conn      *websocket.Conn
	voice     string
	encoding  string
	rate      int
	contextID string
	audio     chan []byte
	closed    atomic.Bool
	writeMu   sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// SendText queues one chunk. Continue=false tells Cartesia the context
// is complete; it rejects further chunks afterwards.
func (s *stream) SendText(text string, final bool) error {
	if s.closed.Load() {
		return fmt.Errorf("cartesia: stream closed")
	}

	req := synthesisRequest{
		ModelID:    modelID,
		Transcript: text,
		Voice:      voiceSpec{Mode: "id", ID: s.voice},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   s.encoding,
			SampleRate: s.rate,
		},
		ContextID: s.contextID,
		Continue:  !final,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("cartesia: send text: %w", err)
	}
	return nil
}

func (s *stream) Audio() <-chan []byte {
	return s.audio
}

func (s *stream) readLoop() {
	defer close(s.audio)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var msg synthesisResponse
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "chunk":
			data, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				return
			}
			select {
			case s.audio <- data:
			case <-s.ctx.Done():
				return
			}
		case "done":
			return
		case "flush_done":
			// More audio may still follow for queued chunks.
		case "error":
			return
		}
	}
}

func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	return s.conn.Close()
}
