package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"
)

// TurnDetectorConfig tunes end-of-turn detection.
type TurnDetectorConfig struct {
	// PunctuationTrigger lists the characters that commit a turn when the
	// transcript ends with one of them.
	PunctuationTrigger string
	// MinWords is the minimum word count before punctuation commits.
	MinWords int
	// InactivityTimeout force-commits a non-empty transcript after this
	// much time without new deltas.
	InactivityTimeout time.Duration
	// TickInterval is how often the timeout checker runs.
	TickInterval time.Duration
}

func (c *TurnDetectorConfig) applyDefaults() {
	if c.PunctuationTrigger == "" {
		c.PunctuationTrigger = ".!?"
	}
	if c.MinWords == 0 {
		c.MinWords = 2
	}
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = 3 * time.Second
	}
	if c.TickInterval == 0 {
		c.TickInterval = 200 * time.Millisecond
	}
}

// TurnDetector accumulates transcript deltas and decides when the
// speaker's turn is over: terminal punctuation commits immediately once
// enough words arrived, and an inactivity timeout force-commits whatever
// has accumulated.
type TurnDetector struct {
	config TurnDetectorConfig

	mu         sync.Mutex
	cancel     context.CancelFunc
	transcript strings.Builder
	lastDelta  time.Time
	committed  bool

	onCommit func(transcript string, forced bool)
}

// NewTurnDetector creates a turn detector. onCommit fires once per turn;
// call Reset to arm the detector for the next turn.
func NewTurnDetector(config TurnDetectorConfig, onCommit func(transcript string, forced bool)) *TurnDetector {
	config.applyDefaults()
	return &TurnDetector{config: config, onCommit: onCommit}
}

// Start launches the inactivity checker.
func (d *TurnDetector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go d.timeoutLoop(ctx)
}

// Stop halts the inactivity checker.
func (d *TurnDetector) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
}

func (d *TurnDetector) timeoutLoop(ctx context.Context) {
	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkTimeout()
		}
	}
}

func (d *TurnDetector) checkTimeout() {
	d.mu.Lock()
	if d.committed || d.transcript.Len() == 0 || d.lastDelta.IsZero() {
		d.mu.Unlock()
		return
	}
	if time.Since(d.lastDelta) < d.config.InactivityTimeout {
		d.mu.Unlock()
		return
	}

	transcript := strings.TrimSpace(d.transcript.String())
	d.committed = true
	d.mu.Unlock()

	if transcript != "" && d.onCommit != nil {
		d.onCommit(transcript, true)
	}
}

// AddDelta appends a transcript delta and commits the turn if the
// accumulated text ends with trigger punctuation.
func (d *TurnDetector) AddDelta(text string) {
	if text == "" {
		return
	}

	d.mu.Lock()
	if d.committed {
		d.mu.Unlock()
		return
	}

	d.transcript.WriteString(text)
	d.lastDelta = time.Now()
	full := strings.TrimSpace(d.transcript.String())

	if !d.endsWithPunctuation(full) {
		d.mu.Unlock()
		return
	}
	if len(strings.Fields(full)) < d.config.MinWords {
		d.mu.Unlock()
		return
	}

	d.committed = true
	d.mu.Unlock()

	if d.onCommit != nil {
		d.onCommit(full, false)
	}
}

func (d *TurnDetector) endsWithPunctuation(text string) bool {
	if text == "" {
		return false
	}
	return strings.ContainsRune(d.config.PunctuationTrigger, rune(text[len(text)-1]))
}

// Transcript returns the accumulated transcript for the current turn.
func (d *TurnDetector) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.transcript.String())
}

// Reset arms the detector for the next turn.
func (d *TurnDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transcript.Reset()
	d.lastDelta = time.Time{}
	d.committed = false
}
