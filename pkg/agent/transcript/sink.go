package transcript

import (
	"fmt"
	"os"
)

// Sink is the durable, session-scoped destination for transcript lines.
type Sink interface {
	Append(line string) error
	Close() error
	// Path returns the local artifact location, or "" when not file-backed.
	Path() string
}

// FileSink writes transcript lines to a per-room log file, one write per
// line so ordering on disk matches append order.
type FileSink struct {
	path string
	file *os.File
}

// NewFileSink creates (truncating) the room-scoped transcript file.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: create %s: %w", path, err)
	}
	return &FileSink{path: path, file: f}, nil
}

func (s *FileSink) Append(line string) error {
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("transcript: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileSink) Close() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("transcript: sync %s: %w", s.path, err)
	}
	return s.file.Close()
}

func (s *FileSink) Path() string { return s.path }
