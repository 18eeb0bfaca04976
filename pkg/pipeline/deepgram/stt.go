// Package deepgram implements streaming speech-to-text against
// Deepgram's live transcription WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hireloop/interviewd/pkg/pipeline"
)

const liveURL = "wss://api.deepgram.com/v1/listen"

// STT opens live transcription sessions.
type STT struct {
	apiKey string
}

// New creates a Deepgram STT provider.
func New(apiKey string) *STT {
	return &STT{apiKey: apiKey}
}

// NewStream connects a live transcription session.
func (d *STT) NewStream(ctx context.Context, opts pipeline.STTOptions) (pipeline.STTStream, error) {
	u, err := url.Parse(liveURL)
	if err != nil {
		return nil, fmt.Errorf("deepgram: parse url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "nova-2"
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	q := u.Query()
	q.Set("model", model)
	q.Set("language", language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("deepgram: connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("deepgram: connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram: connect: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &stream{
		conn:        conn,
		transcripts: make(chan pipeline.TranscriptDelta, 100),
		ctx:         ctx,
		cancel:      cancel,
	}
	go s.readLoop()
	return s, nil
}

type stream struct {
	conn        *websocket.Conn
	transcripts chan pipeline.TranscriptDelta
	closed      atomic.Bool
	writeMu     sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// liveResult is the subset of Deepgram's Results message the pipeline
// consumes.
type liveResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *stream) readLoop() {
	defer close(s.transcripts)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var result liveResult
		if err := json.Unmarshal(data, &result); err != nil {
			continue
		}
		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}
		text := result.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		select {
		case s.transcripts <- pipeline.TranscriptDelta{Text: text, IsFinal: result.IsFinal}:
		case <-s.ctx.Done():
			return
		}
	}
}

// SendAudio writes one PCM frame to the session.
func (s *stream) SendAudio(data []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("deepgram: stream closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("deepgram: send audio: %w", err)
	}
	return nil
}

func (s *stream) Transcripts() <-chan pipeline.TranscriptDelta {
	return s.transcripts
}

// Close tells Deepgram the audio is done and tears the session down.
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.writeMu.Unlock()
	s.cancel()
	return s.conn.Close()
}
