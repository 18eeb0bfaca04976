package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hireloop/interviewd/pkg/core/types"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
)

// --- fakes ---

type fakeRoom struct {
	mu        sync.Mutex
	frames    chan []byte
	published [][]byte
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{frames: make(chan []byte, 16)}
}

func (r *fakeRoom) Name() string                      { return "test-room" }
func (r *fakeRoom) Connect(ctx context.Context) error { return nil }
func (r *fakeRoom) AudioFrames() <-chan []byte        { return r.frames }
func (r *fakeRoom) Chat() <-chan media.ChatMessage    { return nil }
func (r *fakeRoom) SendChat(text string) error        { return nil }
func (r *fakeRoom) PublishVideoFrame([]byte) error    { return nil }
func (r *fakeRoom) Close() error                      { return nil }

func (r *fakeRoom) WaitForParticipant(ctx context.Context) (media.Participant, error) {
	return media.Participant{Identity: "candidate"}, nil
}

func (r *fakeRoom) PublishAudio(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, frame)
	return nil
}

func (r *fakeRoom) publishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

type fakeSTTStream struct {
	deltas chan TranscriptDelta
	audio  [][]byte
	mu     sync.Mutex
}

func (s *fakeSTTStream) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, data)
	return nil
}
func (s *fakeSTTStream) Transcripts() <-chan TranscriptDelta { return s.deltas }
func (s *fakeSTTStream) Close() error                        { return nil }

func (s *fakeSTTStream) audioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

type fakeSTT struct{ stream *fakeSTTStream }

func (f *fakeSTT) NewStream(ctx context.Context, opts STTOptions) (STTStream, error) {
	return f.stream, nil
}

type fakeTTSStream struct {
	mu     sync.Mutex
	sent   []string
	audio  chan []byte
	closed bool
}

func newFakeTTSStream() *fakeTTSStream {
	return &fakeTTSStream{audio: make(chan []byte, 16)}
}

func (s *fakeTTSStream) SendText(text string, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if text != "" {
		s.sent = append(s.sent, text)
		s.audio <- []byte{0x01, 0x02}
	}
	if final {
		s.closed = true
		close(s.audio)
	}
	return nil
}
func (s *fakeTTSStream) Audio() <-chan []byte { return s.audio }
func (s *fakeTTSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.audio)
	}
	return nil
}

func (s *fakeTTSStream) sentText() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeTTS struct {
	mu      sync.Mutex
	streams []*fakeTTSStream
}

func (f *fakeTTS) NewStream(ctx context.Context, opts TTSOptions) (TTSStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeTTSStream()
	f.streams = append(f.streams, s)
	return s, nil
}

type fakeLLMStream struct {
	deltas []string
	pos    int
	usage  llm.Usage
}

func (s *fakeLLMStream) Next() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}
func (s *fakeLLMStream) Usage() llm.Usage { return s.usage }
func (s *fakeLLMStream) Close() error     { return nil }

type fakeLLM struct {
	mu       sync.Mutex
	requests []*llm.Request
	deltas   []string
	usage    llm.Usage
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (f *fakeLLM) StreamComplete(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &fakeLLMStream{deltas: f.deltas, usage: f.usage}, nil
}

func (f *fakeLLM) lastRequest() *llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// gatedLLMStream yields one delta, then holds the stream open until
// release closes. It ignores cancellation so the response completes even
// while the pipeline is tearing down.
type gatedLLMStream struct {
	release <-chan struct{}
	sent    bool
}

func (s *gatedLLMStream) Next() (string, error) {
	if !s.sent {
		s.sent = true
		return "One moment.", nil
	}
	<-s.release
	return "", io.EOF
}
func (s *gatedLLMStream) Usage() llm.Usage { return llm.Usage{} }
func (s *gatedLLMStream) Close() error     { return nil }

type gatedLLM struct {
	release chan struct{}
	started chan struct{}
}

func (f *gatedLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (f *gatedLLM) StreamComplete(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	close(f.started)
	return &gatedLLMStream{release: f.release}, nil
}

type recordingHandler struct {
	mu         sync.Mutex
	userTurns  []string
	agentTurns []string
	metrics    []types.MetricsEvent
}

func (h *recordingHandler) OnUserTurn(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userTurns = append(h.userTurns, text)
}

func (h *recordingHandler) OnAgentTurn(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agentTurns = append(h.agentTurns, text)
}

func (h *recordingHandler) OnMetrics(ev types.MetricsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = append(h.metrics, ev)
}

func (h *recordingHandler) agentTurnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.agentTurns)
}

func (h *recordingHandler) metricTotal(kind types.MetricKind) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total float64
	for _, ev := range h.metrics {
		if ev.Kind == kind {
			total += ev.Amount
		}
	}
	return total
}

// --- helpers ---

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestPipeline(t *testing.T, hook PreTurnHook) (*Pipeline, *fakeSTTStream, *fakeLLM, *recordingHandler, *fakeRoom) {
	t.Helper()

	sttStream := &fakeSTTStream{deltas: make(chan TranscriptDelta, 16)}
	model := &fakeLLM{
		deltas: []string{"I see.", " Tell me more."},
		usage:  llm.Usage{PromptTokens: 40, CompletionTokens: 8},
	}
	handler := &recordingHandler{}
	room := newFakeRoom()

	chatCtx := types.NewChatContext()
	chatCtx.Append(types.RoleSystem, "You are an interviewer.")

	p := New(Config{
		Model:      "gemini-2.0-flash",
		STTModel:   "nova-2",
		SampleRate: 16000,
	}, model, &fakeSTT{stream: sttStream}, &fakeTTS{}, chatCtx, handler, hook)

	if err := p.Start(context.Background(), room); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(p.Stop)

	return p, sttStream, model, handler, room
}

// --- tests ---

func TestPipeline_TurnFlow(t *testing.T) {
	p, sttStream, model, handler, room := newTestPipeline(t, nil)

	// One second of 16-bit mono audio at 16kHz.
	room.frames <- make([]byte, 32000)
	waitFor(t, func() bool { return sttStream.audioCount() == 1 }, "audio frame never forwarded")
	sttStream.deltas <- TranscriptDelta{Text: "I built a payment system."}

	waitFor(t, func() bool { return handler.agentTurnCount() == 1 }, "agent turn never completed")

	handler.mu.Lock()
	userTurn := handler.userTurns[0]
	agentTurn := handler.agentTurns[0]
	handler.mu.Unlock()

	if userTurn != "I built a payment system." {
		t.Errorf("user turn = %q", userTurn)
	}
	if agentTurn != "I see. Tell me more." {
		t.Errorf("agent turn = %q", agentTurn)
	}

	req := model.lastRequest()
	if req.System != "You are an interviewer." {
		t.Errorf("system = %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != types.RoleUser {
		t.Errorf("request messages = %+v", req.Messages)
	}

	if got := handler.metricTotal(types.MetricLLMPromptTokens); got != 40 {
		t.Errorf("prompt tokens = %v", got)
	}
	if got := handler.metricTotal(types.MetricLLMCompletionTokens); got != 8 {
		t.Errorf("completion tokens = %v", got)
	}
	if got := handler.metricTotal(types.MetricSTTAudioSeconds); got != 1 {
		t.Errorf("stt seconds = %v, want 1", got)
	}
	if got := handler.metricTotal(types.MetricTTSCharacters); got == 0 {
		t.Error("no tts characters recorded")
	}

	waitFor(t, func() bool { return room.publishedCount() > 0 }, "no synthesized audio published")
	waitFor(t, func() bool { return p.State() == StateListening }, "pipeline did not return to listening")
}

func TestPipeline_HookRunsBeforeRequest(t *testing.T) {
	var hookCalls int
	var hookMu sync.Mutex
	hook := func(ctx context.Context, chatCtx *types.ChatContext) error {
		hookMu.Lock()
		hookCalls++
		hookMu.Unlock()
		chatCtx.InsertBeforeLast(types.Message{Role: types.RoleAssistant, Content: "Context:\nrelevant fragment"})
		return nil
	}

	_, sttStream, model, handler, _ := newTestPipeline(t, hook)
	sttStream.deltas <- TranscriptDelta{Text: "What about channels?"}

	waitFor(t, func() bool { return handler.agentTurnCount() == 1 }, "agent turn never completed")

	hookMu.Lock()
	calls := hookCalls
	hookMu.Unlock()
	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}

	req := model.lastRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("request messages = %d, want 2 (context + user)", len(req.Messages))
	}
	if req.Messages[0].Role != types.RoleAssistant || req.Messages[0].TextContent() != "Context:\nrelevant fragment" {
		t.Errorf("spliced message = %+v", req.Messages[0])
	}
	if req.Messages[1].Role != types.RoleUser {
		t.Errorf("trailing message = %+v", req.Messages[1])
	}
}

func TestPipeline_TurnSurvivesHookFailure(t *testing.T) {
	hook := func(ctx context.Context, chatCtx *types.ChatContext) error {
		return errors.New("retrieval backend down")
	}

	_, sttStream, model, handler, _ := newTestPipeline(t, hook)
	sttStream.deltas <- TranscriptDelta{Text: "Describe your last project."}

	waitFor(t, func() bool { return handler.agentTurnCount() == 1 }, "agent turn never completed despite hook failure")

	req := model.lastRequest()
	if len(req.Messages) != 1 {
		t.Errorf("request messages = %d, want 1 (no splice)", len(req.Messages))
	}
}

func TestPipeline_StopWaitsForInFlightTurn(t *testing.T) {
	sttStream := &fakeSTTStream{deltas: make(chan TranscriptDelta, 16)}
	handler := &recordingHandler{}
	room := newFakeRoom()
	model := &gatedLLM{release: make(chan struct{}), started: make(chan struct{})}

	chatCtx := types.NewChatContext()
	chatCtx.Append(types.RoleSystem, "You are an interviewer.")

	p := New(Config{
		Model:      "gemini-2.0-flash",
		STTModel:   "nova-2",
		SampleRate: 16000,
	}, model, &fakeSTT{stream: sttStream}, &fakeTTS{}, chatCtx, handler, nil)
	if err := p.Start(context.Background(), room); err != nil {
		t.Fatalf("start: %v", err)
	}

	sttStream.deltas <- TranscriptDelta{Text: "Walk me through your resume."}
	<-model.started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a response was still streaming")
	case <-time.After(50 * time.Millisecond):
	}

	close(model.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop never returned after the response finished")
	}

	// The completed response was committed before teardown finished.
	if got := handler.agentTurnCount(); got != 1 {
		t.Errorf("agent turns = %d, want 1", got)
	}
}

func TestPipeline_SayRecordsAssistantTurn(t *testing.T) {
	p, _, _, handler, room := newTestPipeline(t, nil)

	if err := p.Say(context.Background(), "Welcome to your interview."); err != nil {
		t.Fatalf("say: %v", err)
	}

	handler.mu.Lock()
	agentTurns := append([]string(nil), handler.agentTurns...)
	handler.mu.Unlock()
	if len(agentTurns) != 1 || agentTurns[0] != "Welcome to your interview." {
		t.Errorf("agent turns = %v", agentTurns)
	}
	if got := handler.metricTotal(types.MetricTTSCharacters); got != float64(len("Welcome to your interview.")) {
		t.Errorf("tts characters = %v", got)
	}
	if room.publishedCount() == 0 {
		t.Error("say published no audio")
	}
}
