// Package transcript provides the append-only, asynchronously drained
// turn-by-turn conversation log for a single session.
package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser  Speaker = "USER"
	SpeakerAgent Speaker = "AGENT"
)

// Event is a single committed turn. Events are consumed exactly once by
// the drain loop, in append order.
type Event struct {
	Timestamp time.Time
	Speaker   Speaker
	Text      string
}

// Line renders the event in the transcript wire format. Downstream
// feedback analysis pairs alternating AGENT/USER lines, so the format is
// load-bearing.
func (e Event) Line() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("[%s] %s: %s\n", ts.Format(time.RFC3339Nano), e.Speaker, e.Text)
}

// Uploader pushes the finished artifact to a remote object store.
// Satisfied by *blob.Store.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// Options configures the optional post-drain steps.
type Options struct {
	// Uploader, when set, receives the artifact under ObjectKey after the
	// sink is closed. Upload failure is logged, never fatal.
	Uploader  Uploader
	ObjectKey string

	// RemoveLocal deletes the local artifact after drain (and upload, if
	// configured). Best effort.
	RemoveLocal bool

	Logger *slog.Logger
}

// Logger is the session transcript logger: an unbounded FIFO queue drained
// by a single background goroutine that writes entries strictly in arrival
// order. Memory growth under a stalled sink is unbounded; the queue imposes
// no backpressure.
type Logger struct {
	sink Sink
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	queue   []*Event // nil entry is the terminal sentinel
	wake    chan struct{}
	closing bool

	done    chan struct{}
	started bool
}

// NewLogger creates a logger writing to sink. Call Start to begin draining.
func NewLogger(sink Sink, opts Options) *Logger {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		sink: sink,
		opts: opts,
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (l *Logger) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.drain()
}

// Append enqueues an event. Non-blocking; bounded only by memory. Events
// appended after CloseAndDrain are dropped.
func (l *Logger) Append(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		l.log.Warn("transcript append after close dropped", "speaker", ev.Speaker)
		return
	}
	l.queue = append(l.queue, &ev)
	l.mu.Unlock()

	l.signal()
}

// CloseAndDrain pushes the terminal sentinel and waits for the drain loop
// to write every queued entry and finish. Already-queued entries are never
// dropped; ctx bounds only the wait.
func (l *Logger) CloseAndDrain(ctx context.Context) error {
	l.mu.Lock()
	if !l.closing {
		l.closing = true
		l.queue = append(l.queue, nil)
	}
	started := l.started
	l.mu.Unlock()

	if !started {
		return fmt.Errorf("transcript: logger never started")
	}
	l.signal()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transcript: drain wait: %w", ctx.Err())
	}
}

// Done is closed once the drain loop has flushed and exited.
func (l *Logger) Done() <-chan struct{} { return l.done }

func (l *Logger) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain consumes queued events one at a time in FIFO order until the
// sentinel arrives, then closes the sink and runs the post steps.
func (l *Logger) drain() {
	defer close(l.done)

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			<-l.wake
			continue
		}
		ev := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if ev == nil {
			l.finish()
			return
		}

		if err := l.sink.Append(ev.Line()); err != nil {
			// Losing a line costs observability, not the session. Drain
			// must keep consuming so shutdown never hangs.
			l.log.Error("transcript write failed", "error", err, "speaker", ev.Speaker)
		}
	}
}

func (l *Logger) finish() {
	if err := l.sink.Close(); err != nil {
		l.log.Error("transcript sink close failed", "error", err)
	}

	path := l.sink.Path()
	if l.opts.Uploader != nil && path != "" {
		if err := l.upload(path); err != nil {
			l.log.Error("transcript upload failed", "error", err, "key", l.opts.ObjectKey)
		} else {
			l.log.Info("transcript uploaded", "key", l.opts.ObjectKey)
		}
	}

	if l.opts.RemoveLocal && path != "" {
		if err := os.Remove(path); err != nil {
			l.log.Warn("transcript local delete failed", "error", err, "path", path)
		}
	}
}

func (l *Logger) upload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return l.opts.Uploader.Upload(ctx, l.opts.ObjectKey, bytes.NewReader(data))
}
