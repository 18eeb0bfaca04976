// Package pipeline runs the voice loop for one interview session: room
// audio in, streaming transcription, turn detection, an LLM response
// streamed into speech synthesis, and synthesized audio published back to
// the room.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hireloop/interviewd/pkg/core/types"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
)

// State is the pipeline's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateStopped    State = "stopped"
)

// EventHandler receives committed turns and usage metrics. Callbacks run
// on pipeline goroutines and must not block.
type EventHandler interface {
	OnUserTurn(text string)
	OnAgentTurn(text string)
	OnMetrics(ev types.MetricsEvent)
}

// PreTurnHook runs after a user turn is appended to the conversation and
// before the LLM request is built. A non-nil error skips whatever the
// hook was going to contribute; the turn itself proceeds.
type PreTurnHook func(ctx context.Context, chatCtx *types.ChatContext) error

// Config configures a voice pipeline.
type Config struct {
	// Model is the LLM used for responses.
	Model string
	// MaxTokens caps each LLM response.
	MaxTokens int
	// Temperature overrides the model default when non-nil.
	Temperature *float64

	// STTModel selects the transcription model. Telephony sessions use a
	// phone-call model.
	STTModel string
	// Language is the transcription language hint.
	Language string

	// Voice selects the synthesis voice.
	Voice string
	// SampleRate is the PCM sample rate for both directions.
	SampleRate int

	// AllowInterruptions lets user speech cut off an in-flight response.
	AllowInterruptions bool

	Logger *slog.Logger
}

// Pipeline is the per-session voice loop. Construct with New, call Start
// once, Stop when the session ends.
type Pipeline struct {
	cfg     Config
	llm     llm.Client
	stt     STT
	tts     TTS
	handler EventHandler
	hook    PreTurnHook
	log     *slog.Logger

	mu      sync.Mutex
	state   State
	chatCtx *types.ChatContext
	room    media.Room

	sttStream  STTStream
	ttsStream  TTSStream
	turn       *TurnDetector
	audioBytes int64

	agentCancel context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  atomic.Bool
	scripted atomic.Bool
	wg       sync.WaitGroup
}

// New creates a pipeline over an existing conversation context. The
// pipeline is the sole writer of chatCtx after Start; the hook runs
// within that single-writer discipline.
func New(cfg Config, llmClient llm.Client, stt STT, tts TTS, chatCtx *types.ChatContext, handler EventHandler, hook PreTurnHook) *Pipeline {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		cfg:     cfg,
		llm:     llmClient,
		stt:     stt,
		tts:     tts,
		handler: handler,
		hook:    hook,
		log:     log,
		state:   StateIdle,
		chatCtx: chatCtx,
		done:    make(chan struct{}),
	}
	p.turn = NewTurnDetector(TurnDetectorConfig{}, p.onTurnCommitted)
	return p
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start connects the pipeline to the room's audio and begins listening.
func (p *Pipeline) Start(ctx context.Context, room media.Room) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.room = room
	p.mu.Unlock()

	sttStream, err := p.stt.NewStream(p.ctx, STTOptions{
		Model:      p.cfg.STTModel,
		Language:   p.cfg.Language,
		SampleRate: p.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("pipeline: start transcription: %w", err)
	}

	p.mu.Lock()
	p.sttStream = sttStream
	p.mu.Unlock()

	p.turn.Start(p.ctx)
	p.setState(StateListening)

	p.wg.Add(2)
	go p.audioLoop(room.AudioFrames())
	go p.sttLoop(sttStream)

	p.log.Info("pipeline started", "room", room.Name(), "stt_model", p.cfg.STTModel, "llm_model", p.cfg.Model)
	return nil
}

// Stop tears the pipeline down. Idempotent. Blocks until the processing
// loops exit.
func (p *Pipeline) Stop() {
	if p.stopped.Swap(true) {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.agentCancel != nil {
		p.agentCancel()
		p.agentCancel = nil
	}
	sttStream := p.sttStream
	ttsStream := p.ttsStream
	p.mu.Unlock()

	p.turn.Stop()
	if sttStream != nil {
		sttStream.Close()
	}
	if ttsStream != nil {
		ttsStream.Close()
	}

	close(p.done)
	p.wg.Wait()
	p.setState(StateStopped)
}

// Say synthesizes text directly, bypassing the LLM. Used for greetings
// and scripted prompts. The utterance is recorded as an assistant turn
// and cannot be interrupted.
func (p *Pipeline) Say(ctx context.Context, text string) error {
	if p.stopped.Load() {
		return fmt.Errorf("pipeline: stopped")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.scripted.Store(true)
	defer p.scripted.Store(false)
	p.setState(StateSpeaking)

	ttsStream, err := p.openTTS(ctx)
	if err != nil {
		p.setState(StateListening)
		return err
	}
	if err := ttsStream.SendText(text, true); err != nil {
		p.closeTTS(ttsStream)
		p.setState(StateListening)
		return fmt.Errorf("pipeline: say: %w", err)
	}
	p.emitMetric(types.MetricTTSCharacters, float64(len(text)))

	p.pumpAudio(ctx, ttsStream)

	p.mu.Lock()
	p.chatCtx.Append(types.RoleAssistant, text)
	p.mu.Unlock()

	if p.handler != nil {
		p.handler.OnAgentTurn(text)
	}
	p.setState(StateListening)
	p.turn.Reset()
	return nil
}

// audioLoop forwards inbound room audio to the transcription stream and
// accounts for transcribed audio duration.
func (p *Pipeline) audioLoop(frames <-chan []byte) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-p.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			p.mu.Lock()
			stream := p.sttStream
			p.audioBytes += int64(len(frame))
			p.mu.Unlock()

			if stream != nil {
				if err := stream.SendAudio(frame); err != nil {
					p.log.Warn("transcription audio send failed", "error", err)
				}
			}
		}
	}
}

// sttLoop feeds transcript deltas into turn detection.
func (p *Pipeline) sttLoop(stream STTStream) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-p.ctx.Done():
			return
		case delta, ok := <-stream.Transcripts():
			if !ok {
				return
			}
			p.handleDelta(delta)
		}
	}
}

func (p *Pipeline) handleDelta(delta TranscriptDelta) {
	if delta.Text == "" {
		return
	}

	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateListening:
		p.turn.AddDelta(delta.Text)

	case StateProcessing, StateSpeaking:
		if !p.cfg.AllowInterruptions || p.scripted.Load() {
			return
		}
		p.log.Info("user interrupted response", "delta", delta.Text)
		p.interrupt()
		p.turn.AddDelta(delta.Text)
	}
}

// interrupt cancels the in-flight response and returns to listening.
func (p *Pipeline) interrupt() {
	p.mu.Lock()
	if p.agentCancel != nil {
		p.agentCancel()
		p.agentCancel = nil
	}
	ttsStream := p.ttsStream
	p.ttsStream = nil
	p.mu.Unlock()

	if ttsStream != nil {
		ttsStream.Close()
	}
	p.setState(StateListening)
	p.turn.Reset()
}

// onTurnCommitted handles a completed user turn: commit the transcript,
// run the pre-turn hook, and stream the response.
func (p *Pipeline) onTurnCommitted(transcript string, forced bool) {
	p.setState(StateProcessing)
	p.log.Info("user turn committed", "forced", forced, "chars", len(transcript))

	p.mu.Lock()
	bytes := p.audioBytes
	p.audioBytes = 0
	p.chatCtx.Append(types.RoleUser, transcript)
	p.mu.Unlock()

	if bytes > 0 {
		// 16-bit mono PCM.
		seconds := float64(bytes) / float64(p.cfg.SampleRate*2)
		p.emitMetric(types.MetricSTTAudioSeconds, seconds)
	}

	if p.handler != nil {
		p.handler.OnUserTurn(transcript)
	}

	if p.hook != nil {
		p.mu.Lock()
		err := p.hook(p.ctx, p.chatCtx)
		p.mu.Unlock()
		if err != nil {
			// The hook's contribution is best-effort; the turn proceeds.
			p.log.Warn("pre-turn hook failed, continuing without it", "error", err)
		}
	}

	agentCtx, agentCancel := context.WithCancel(p.ctx)
	p.mu.Lock()
	p.agentCancel = agentCancel
	req := p.buildRequest()
	p.mu.Unlock()

	// Stop waits on the WaitGroup, so a response mid-commit finishes
	// delivering its turn to the handler before teardown proceeds.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runAgent(agentCtx, req)
	}()
}

// buildRequest snapshots the conversation into an LLM request. Caller
// holds p.mu.
func (p *Pipeline) buildRequest() *llm.Request {
	req := &llm.Request{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	for _, msg := range p.chatCtx.Messages {
		if msg.Role == types.RoleSystem {
			req.System = msg.TextContent()
			continue
		}
		req.Messages = append(req.Messages, msg)
	}
	return req
}

// runAgent streams the LLM response into speech synthesis.
func (p *Pipeline) runAgent(ctx context.Context, req *llm.Request) {
	stream, err := p.llm.StreamComplete(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("llm request failed", "error", err)
		}
		p.setState(StateListening)
		p.turn.Reset()
		return
	}
	defer stream.Close()

	ttsStream, err := p.openTTS(ctx)
	if err != nil {
		p.log.Error("synthesis start failed", "error", err)
		p.setState(StateListening)
		p.turn.Reset()
		return
	}

	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		p.pumpAudio(ctx, ttsStream)
	}()

	buffer := NewSentenceBuffer()
	var fullText strings.Builder
	first := true

	for {
		delta, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				buffer.Reset()
				return
			}
			p.log.Warn("llm stream error", "error", err)
			break
		}
		if delta == "" {
			continue
		}

		fullText.WriteString(delta)
		if first {
			first = false
			p.setState(StateSpeaking)
		}

		if chunk := buffer.Add(delta); chunk != "" {
			p.sendChunk(ttsStream, chunk, false)
		}
	}

	if remaining := buffer.Flush(); remaining != "" {
		p.sendChunk(ttsStream, remaining, true)
	} else {
		ttsStream.SendText("", true)
	}

	usage := stream.Usage()
	p.emitMetric(types.MetricLLMPromptTokens, float64(usage.PromptTokens))
	p.emitMetric(types.MetricLLMCompletionTokens, float64(usage.CompletionTokens))

	text := fullText.String()
	if text != "" {
		p.mu.Lock()
		p.chatCtx.Append(types.RoleAssistant, text)
		p.mu.Unlock()
		if p.handler != nil {
			p.handler.OnAgentTurn(text)
		}
	}

	// Wait for synthesis audio to finish playing out before listening
	// again.
	select {
	case <-audioDone:
	case <-ctx.Done():
	}

	p.closeTTS(ttsStream)
	p.setState(StateListening)
	p.turn.Reset()
}

func (p *Pipeline) sendChunk(stream TTSStream, chunk string, final bool) {
	if err := stream.SendText(chunk, final); err != nil {
		p.log.Warn("synthesis send failed", "error", err)
		return
	}
	p.emitMetric(types.MetricTTSCharacters, float64(len(chunk)))
}

func (p *Pipeline) openTTS(ctx context.Context) (TTSStream, error) {
	stream, err := p.tts.NewStream(ctx, TTSOptions{
		Voice:      p.cfg.Voice,
		SampleRate: p.cfg.SampleRate,
		Format:     "pcm",
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: open synthesis: %w", err)
	}

	p.mu.Lock()
	if p.ttsStream != nil {
		p.ttsStream.Close()
	}
	p.ttsStream = stream
	p.mu.Unlock()
	return stream, nil
}

func (p *Pipeline) closeTTS(stream TTSStream) {
	p.mu.Lock()
	if p.ttsStream == stream {
		p.ttsStream = nil
	}
	p.mu.Unlock()
	stream.Close()
}

// pumpAudio publishes synthesized frames to the room until the stream's
// audio channel closes.
func (p *Pipeline) pumpAudio(ctx context.Context, stream TTSStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case frame, ok := <-stream.Audio():
			if !ok {
				return
			}
			p.mu.Lock()
			room := p.room
			p.mu.Unlock()
			if room == nil {
				return
			}
			if err := room.PublishAudio(frame); err != nil {
				p.log.Warn("audio publish failed", "error", err)
				return
			}
		}
	}
}

func (p *Pipeline) setState(state State) {
	p.mu.Lock()
	old := p.state
	if old == StateStopped && state != StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.mu.Unlock()

	if old != state {
		p.log.Debug("pipeline state", "from", string(old), "to", string(state))
	}
}

func (p *Pipeline) emitMetric(kind types.MetricKind, amount float64) {
	if p.handler == nil || amount == 0 {
		return
	}
	p.handler.OnMetrics(types.MetricsEvent{
		Kind:      kind,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}
