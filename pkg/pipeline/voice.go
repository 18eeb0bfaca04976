package pipeline

import "context"

// TranscriptDelta is an incremental speech-to-text result.
type TranscriptDelta struct {
	Text    string
	IsFinal bool
}

// STTOptions configures a streaming transcription session.
type STTOptions struct {
	Model      string
	Language   string
	SampleRate int
}

// STTStream is a live transcription session: audio in, transcript deltas
// out. The Transcripts channel closes when the stream ends.
type STTStream interface {
	SendAudio(data []byte) error
	Transcripts() <-chan TranscriptDelta
	Close() error
}

// STT opens streaming transcription sessions.
type STT interface {
	NewStream(ctx context.Context, opts STTOptions) (STTStream, error)
}

// TTSOptions configures a streaming synthesis session.
type TTSOptions struct {
	Voice      string
	SampleRate int
	Format     string
}

// TTSStream is a live synthesis session: text in, PCM audio frames out.
// The Audio channel closes when synthesis for the final text completes.
type TTSStream interface {
	// SendText queues text for synthesis. final signals that no more text
	// follows for this utterance.
	SendText(text string, final bool) error
	Audio() <-chan []byte
	Close() error
}

// TTS opens streaming synthesis sessions.
type TTS interface {
	NewStream(ctx context.Context, opts TTSOptions) (TTSStream, error)
}
