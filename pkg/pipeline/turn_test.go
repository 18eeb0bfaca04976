package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

type commitRecorder struct {
	mu      sync.Mutex
	commits []string
	forced  []bool
}

func (r *commitRecorder) record(transcript string, forced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, transcript)
	r.forced = append(r.forced, forced)
}

func (r *commitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

func (r *commitRecorder) last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commits) == 0 {
		return "", false
	}
	return r.commits[len(r.commits)-1], r.forced[len(r.forced)-1]
}

func TestTurnDetector_PunctuationCommits(t *testing.T) {
	rec := &commitRecorder{}
	d := NewTurnDetector(TurnDetectorConfig{MinWords: 2}, rec.record)

	d.AddDelta("Tell me about")
	if rec.count() != 0 {
		t.Fatal("committed before punctuation")
	}
	d.AddDelta(" your experience.")

	got, forced := rec.last()
	if got != "Tell me about your experience." {
		t.Errorf("transcript = %q", got)
	}
	if forced {
		t.Error("punctuation commit marked forced")
	}
}

func TestTurnDetector_MinWordsBlocksCommit(t *testing.T) {
	rec := &commitRecorder{}
	d := NewTurnDetector(TurnDetectorConfig{MinWords: 3}, rec.record)

	d.AddDelta("Yes.")
	if rec.count() != 0 {
		t.Error("committed below minimum word count")
	}
}

func TestTurnDetector_InactivityForcesCommit(t *testing.T) {
	rec := &commitRecorder{}
	d := NewTurnDetector(TurnDetectorConfig{
		MinWords:          2,
		InactivityTimeout: 50 * time.Millisecond,
		TickInterval:      10 * time.Millisecond,
	}, rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	d.AddDelta("no punctuation here")

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	got, forced := rec.last()
	if got != "no punctuation here" {
		t.Fatalf("transcript = %q", got)
	}
	if !forced {
		t.Error("timeout commit not marked forced")
	}
}

func TestTurnDetector_CommitsOncePerTurn(t *testing.T) {
	rec := &commitRecorder{}
	d := NewTurnDetector(TurnDetectorConfig{MinWords: 1}, rec.record)

	d.AddDelta("First turn.")
	d.AddDelta(" Ignored after commit.")
	if rec.count() != 1 {
		t.Fatalf("commits = %d, want 1", rec.count())
	}

	d.Reset()
	d.AddDelta("Second turn.")
	if rec.count() != 2 {
		t.Errorf("commits after reset = %d, want 2", rec.count())
	}
}
