// Package usage accumulates per-turn resource metrics for a session.
package usage

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/hireloop/interviewd/pkg/core/types"
)

// Aggregator collects metrics events keyed by resource kind.
// Collect is fire-and-forget and never propagates a failure into the
// turn-processing path; Summary snapshots safely against in-flight collects.
type Aggregator struct {
	mu     sync.Mutex
	totals map[types.MetricKind]float64
	logger *slog.Logger
}

// New creates an aggregator. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		totals: make(map[types.MetricKind]float64),
		logger: logger,
	}
}

// Collect records a metrics event. It must never panic or return an error:
// any failure is swallowed and logged.
func (a *Aggregator) Collect(ev types.MetricsEvent) {
	defer func() {
		if v := recover(); v != nil {
			a.logger.Error("usage collect panic", "panic", v)
		}
	}()

	if ev.Kind == "" {
		a.logger.Warn("usage event with empty kind dropped", "amount", ev.Amount)
		return
	}

	a.mu.Lock()
	a.totals[ev.Kind] += ev.Amount
	a.mu.Unlock()
}

// Summary returns a snapshot of the accumulated totals. Safe to call while
// collects are still in flight.
func (a *Aggregator) Summary() map[types.MetricKind]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[types.MetricKind]float64, len(a.totals))
	for kind, total := range a.totals {
		out[kind] = total
	}
	return out
}

// Kinds returns the sorted resource kinds seen so far. Intended for
// deterministic summary logging.
func (a *Aggregator) Kinds() []types.MetricKind {
	a.mu.Lock()
	defer a.mu.Unlock()

	kinds := make([]types.MetricKind, 0, len(a.totals))
	for kind := range a.totals {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
