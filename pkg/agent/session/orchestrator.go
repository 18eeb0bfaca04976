// Package session orchestrates one interview session end to end:
// connecting the room, waiting for the candidate, personalizing the
// interviewer, running the voice pipeline, relaying out-of-band chat, and
// draining everything on shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/agent/profile"
	"github.com/hireloop/interviewd/pkg/agent/transcript"
	"github.com/hireloop/interviewd/pkg/agent/usage"
	"github.com/hireloop/interviewd/pkg/core/types"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/pipeline"
)

// State is the orchestrator's lifecycle phase.
type State string

const (
	StateConnecting          State = "connecting"
	StateAwaitingParticipant State = "awaiting_participant"
	StateActive              State = "active"
	StateDraining            State = "draining"
	StateClosed              State = "closed"
)

// ProfileFetcher retrieves a candidate profile by participant identity.
// Satisfied by *profile.Client.
type ProfileFetcher interface {
	Fetch(ctx context.Context, identity string) (*profile.Profile, error)
}

// InterviewFetcher reads the pending interview request queued for a
// candidate. Satisfied by *interview.Store; may be nil when the worker
// runs without the request store.
type InterviewFetcher interface {
	Get(ctx context.Context, userID string) (*interview.Request, error)
}

// PipelineRunner is the voice loop started once the candidate is present.
// Satisfied by *pipeline.Pipeline.
type PipelineRunner interface {
	Start(ctx context.Context, room media.Room) error
	Say(ctx context.Context, text string) error
	Stop()
}

// PipelineFactory builds the voice pipeline for a session once the
// participant's kind and the personalized conversation context are known.
type PipelineFactory func(cfg pipeline.Config, chatCtx *types.ChatContext, handler pipeline.EventHandler, hook pipeline.PreTurnHook) PipelineRunner

// Config configures one session.
type Config struct {
	// Greeting is spoken as the first agent turn. Empty skips it.
	Greeting string

	// LLMModel is the response model.
	LLMModel string
	// STTModel transcribes standard participants.
	STTModel string
	// PhoneSTTModel transcribes telephony participants.
	PhoneSTTModel string
	// Voice is the synthesis voice.
	Voice string
	// SampleRate is the PCM sample rate.
	SampleRate int

	// VideoKeepaliveInterval is how often a keepalive video frame is
	// published so clients keep the session tile alive. Zero disables it.
	VideoKeepaliveInterval time.Duration

	// ParticipantTimeout bounds the wait for the candidate to join.
	ParticipantTimeout time.Duration

	// DrainTimeout bounds the transcript drain on shutdown.
	DrainTimeout time.Duration

	Logger *slog.Logger
}

// Orchestrator runs one interview session. It is the pipeline's event
// handler: committed turns go to the transcript logger and metrics to the
// usage aggregator.
type Orchestrator struct {
	cfg        Config
	room       media.Room
	profiles   ProfileFetcher
	interviews InterviewFetcher
	llm        llm.Client
	transcript *transcript.Logger
	usage      *usage.Aggregator
	hook       pipeline.PreTurnHook
	factory    PipelineFactory
	log        *slog.Logger

	mu       sync.Mutex
	state    State
	pipeline PipelineRunner

	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates an orchestrator. The hook (context enrichment) and the
// interview fetcher may be nil.
func New(
	cfg Config,
	room media.Room,
	profiles ProfileFetcher,
	interviews InterviewFetcher,
	llmClient llm.Client,
	transcriptLogger *transcript.Logger,
	aggregator *usage.Aggregator,
	hook pipeline.PreTurnHook,
	factory PipelineFactory,
) *Orchestrator {
	if cfg.PhoneSTTModel == "" {
		cfg.PhoneSTTModel = "nova-2-phonecall"
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.ParticipantTimeout == 0 {
		cfg.ParticipantTimeout = 2 * time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		room:       room,
		profiles:   profiles,
		interviews: interviews,
		llm:        llmClient,
		transcript: transcriptLogger,
		usage:      aggregator,
		hook:       hook,
		factory:    factory,
		log:        log,
		state:      StateConnecting,
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes the session until ctx is cancelled. Startup failures
// (room connection, participant wait, profile fetch, pipeline start) are
// fatal and returned after cleanup.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Shutdown()

	o.setState(StateConnecting)
	if err := o.room.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect room: %w", err)
	}

	o.transcript.Start()

	o.setState(StateAwaitingParticipant)
	waitCtx, cancelWait := context.WithTimeout(ctx, o.cfg.ParticipantTimeout)
	participant, err := o.room.WaitForParticipant(waitCtx)
	cancelWait()
	if err != nil {
		return fmt.Errorf("session: wait for participant: %w", err)
	}
	o.log.Info("participant joined", "identity", participant.Identity, "kind", string(participant.Kind))

	prof, err := o.profiles.Fetch(ctx, participant.Identity)
	if err != nil {
		// The interview cannot run without the candidate's profile.
		return fmt.Errorf("session: %w", err)
	}

	instructions := prof.Instructions()
	if o.interviews != nil {
		// A pending request is optional; its absence or a read failure
		// never blocks the session.
		req, err := o.interviews.Get(ctx, participant.Identity)
		switch {
		case errors.Is(err, interview.ErrNotFound):
			o.log.Info("no pending interview request", "identity", participant.Identity)
		case err != nil:
			o.log.Warn("interview request read failed", "error", err)
		case req.JobID != 0:
			o.log.Info("pending interview request", "job_id", req.JobID)
			instructions += fmt.Sprintf("\nThe candidate requested an interview for job posting %d; focus the conversation on that role.", req.JobID)
		}
	}

	chatCtx := types.NewChatContext()
	chatCtx.Append(types.RoleSystem, instructions)

	// The relay answers over a copy taken before the pipeline becomes the
	// context's single writer.
	relayBase := chatCtx.Copy()

	sttModel := o.cfg.STTModel
	if participant.Kind == media.ParticipantSIP {
		sttModel = o.cfg.PhoneSTTModel
	}

	p := o.factory(pipeline.Config{
		Model:              o.cfg.LLMModel,
		STTModel:           sttModel,
		Voice:              o.cfg.Voice,
		SampleRate:         o.cfg.SampleRate,
		AllowInterruptions: true,
		Logger:             o.log,
	}, chatCtx, o, o.hook)

	if err := p.Start(ctx, o.room); err != nil {
		return fmt.Errorf("session: start pipeline: %w", err)
	}

	o.mu.Lock()
	o.pipeline = p
	o.mu.Unlock()
	o.setState(StateActive)

	if o.cfg.Greeting != "" {
		if err := p.Say(ctx, o.cfg.Greeting); err != nil {
			o.log.Warn("greeting failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.chatRelay(relayCtx, relayBase)
	}()

	if o.cfg.VideoKeepaliveInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.videoKeepalive(relayCtx)
		}()
	}

	<-ctx.Done()
	relayCancel()
	wg.Wait()
	return nil
}

// Shutdown drains the session: stop the pipeline, flush every queued
// transcript entry, log the usage summary, close the room. Idempotent.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.setState(StateDraining)

		o.mu.Lock()
		p := o.pipeline
		o.mu.Unlock()
		if p != nil {
			p.Stop()
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), o.cfg.DrainTimeout)
		defer cancel()
		if err := o.transcript.CloseAndDrain(drainCtx); err != nil {
			o.log.Error("transcript drain incomplete", "error", err)
		}

		summary := o.usage.Summary()
		attrs := make([]any, 0, len(summary)*2)
		for _, kind := range o.usage.Kinds() {
			attrs = append(attrs, string(kind), summary[kind])
		}
		o.log.Info("session usage summary", attrs...)

		if err := o.room.Close(); err != nil {
			o.log.Warn("room close failed", "error", err)
		}

		o.setState(StateClosed)
		close(o.done)
	})
}

// Done is closed once shutdown completes.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// OnUserTurn implements pipeline.EventHandler.
func (o *Orchestrator) OnUserTurn(text string) {
	o.transcript.Append(transcript.Event{Speaker: transcript.SpeakerUser, Text: text})
}

// OnAgentTurn implements pipeline.EventHandler.
func (o *Orchestrator) OnAgentTurn(text string) {
	o.transcript.Append(transcript.Event{Speaker: transcript.SpeakerAgent, Text: text})
}

// OnMetrics implements pipeline.EventHandler.
func (o *Orchestrator) OnMetrics(ev types.MetricsEvent) {
	o.usage.Collect(ev)
}

// chatRelay answers out-of-band text chat with direct LLM calls. The
// relay works on its own copy of the conversation: it never mutates the
// live context and never runs the enrichment hook.
func (o *Orchestrator) chatRelay(ctx context.Context, base *types.ChatContext) {
	history := base.Copy()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-o.room.Chat():
			if !ok {
				return
			}
			if msg.Text == "" {
				continue
			}

			history.Append(types.RoleUser, msg.Text)
			req := &llm.Request{Model: o.cfg.LLMModel, MaxTokens: 512}
			for _, m := range history.Messages {
				if m.Role == types.RoleSystem {
					req.System = m.TextContent()
					continue
				}
				req.Messages = append(req.Messages, m)
			}

			resp, err := o.llm.Complete(ctx, req)
			if err != nil {
				if ctx.Err() == nil {
					o.log.Warn("chat relay completion failed", "error", err)
				}
				continue
			}
			history.Append(types.RoleAssistant, resp.Text)

			o.usage.Collect(types.MetricsEvent{Kind: types.MetricLLMPromptTokens, Amount: float64(resp.Usage.PromptTokens), Timestamp: time.Now()})
			o.usage.Collect(types.MetricsEvent{Kind: types.MetricLLMCompletionTokens, Amount: float64(resp.Usage.CompletionTokens), Timestamp: time.Now()})

			if err := o.room.SendChat(resp.Text); err != nil {
				o.log.Warn("chat relay send failed", "error", err)
			}
		}
	}
}

// videoKeepalive publishes a static frame on an interval so clients keep
// rendering the agent's tile.
func (o *Orchestrator) videoKeepalive(ctx context.Context) {
	frame := make([]byte, 16)
	ticker := time.NewTicker(o.cfg.VideoKeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.room.PublishVideoFrame(frame); err != nil {
				o.log.Debug("video keepalive publish failed", "error", err)
			}
		}
	}
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	old := o.state
	o.state = state
	o.mu.Unlock()

	if old != state {
		o.log.Info("session state", "from", string(old), "to", string(state))
	}
}
