package usage

import (
	"sync"
	"testing"

	"github.com/hireloop/interviewd/pkg/core/types"
)

func TestAggregator_Totals(t *testing.T) {
	a := New(nil)

	a.Collect(types.MetricsEvent{Kind: "A", Amount: 2})
	a.Collect(types.MetricsEvent{Kind: "B", Amount: 3})
	a.Collect(types.MetricsEvent{Kind: "A", Amount: 4})

	summary := a.Summary()
	if got := summary["A"]; got != 6 {
		t.Errorf("A total = %v, want 6", got)
	}
	if got := summary["B"]; got != 3 {
		t.Errorf("B total = %v, want 3", got)
	}
	if len(summary) != 2 {
		t.Errorf("summary has %d kinds, want 2", len(summary))
	}
}

func TestAggregator_InterleavingIndependent(t *testing.T) {
	events := []types.MetricsEvent{
		{Kind: "A", Amount: 2},
		{Kind: "B", Amount: 3},
		{Kind: "A", Amount: 4},
	}

	// Reverse order must produce the same totals.
	forward := New(nil)
	for _, ev := range events {
		forward.Collect(ev)
	}
	reverse := New(nil)
	for i := len(events) - 1; i >= 0; i-- {
		reverse.Collect(events[i])
	}

	fs, rs := forward.Summary(), reverse.Summary()
	for kind, total := range fs {
		if rs[kind] != total {
			t.Errorf("kind %s: forward %v != reverse %v", kind, total, rs[kind])
		}
	}
}

func TestAggregator_ConcurrentCollectAndSummary(t *testing.T) {
	a := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Collect(types.MetricsEvent{Kind: types.MetricLLMPromptTokens, Amount: 1})
				// Summaries racing with collects must not corrupt state.
				_ = a.Summary()
			}
		}()
	}
	wg.Wait()

	if got := a.Summary()[types.MetricLLMPromptTokens]; got != 800 {
		t.Errorf("total = %v, want 800", got)
	}
}

func TestAggregator_EmptyKindDropped(t *testing.T) {
	a := New(nil)
	a.Collect(types.MetricsEvent{Amount: 5})
	if len(a.Summary()) != 0 {
		t.Error("event with empty kind should be dropped")
	}
}

func TestAggregator_Kinds(t *testing.T) {
	a := New(nil)
	a.Collect(types.MetricsEvent{Kind: "b", Amount: 1})
	a.Collect(types.MetricsEvent{Kind: "a", Amount: 1})

	kinds := a.Kinds()
	if len(kinds) != 2 || kinds[0] != "a" || kinds[1] != "b" {
		t.Errorf("kinds = %v, want [a b]", kinds)
	}
}
