package types

import "time"

// MetricKind identifies the resource a metrics event accounts for.
type MetricKind string

const (
	MetricSTTAudioSeconds     MetricKind = "stt_audio_seconds"
	MetricLLMPromptTokens     MetricKind = "llm_prompt_tokens"
	MetricLLMCompletionTokens MetricKind = "llm_completion_tokens"
	MetricTTSCharacters       MetricKind = "tts_characters"
)

// MetricsEvent is a single per-turn resource usage sample emitted by the
// pipeline. Summation over events of one kind must be order-independent,
// so amounts are plain additive quantities.
type MetricsEvent struct {
	Kind      MetricKind `json:"kind"`
	Amount    float64    `json:"amount"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}
