package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/nao1215/pathfinder/internal/model"
)

// ErrClosed is returned when writing to a closed FileSink.
var ErrClosed = errors.New("sink is closed")

// FileSink is an append-only findings log.
type FileSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	lock   *flock.Flock
	closed bool

	// recordUndetermined also logs undetermined indexes.
	recordUndetermined bool
}

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithUndetermined also writes undetermined indexes to the log.
func WithUndetermined(enabled bool) FileOption {
	return func(s *FileSink) {
		s.recordUndetermined = enabled
	}
}

// OpenFile opens path for appending, creating it and its directory when
// missing.
func OpenFile(path string, opts ...FileOption) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create findings directory: %w", err)
		}
	}

	// #nosec G304 -- path comes from the user's configuration
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open findings file: %w", err)
	}

	s := &FileSink{
		path: path,
		file: f,
		lock: flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the log file path.
func (s *FileSink) Path() string {
	return s.path
}

// RecordFinding appends f to the log.
func (s *FileSink) RecordFinding(_ context.Context, f model.Finding) error {
	return s.write(f.LogLine())
}

// RecordUndetermined appends u to the log when enabled.
func (s *FileSink) RecordUndetermined(_ context.Context, u model.Undetermined) error {
	if !s.recordUndetermined {
		return nil
	}
	return s.write(u.LogLine())
}

func (s *FileSink) write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock findings file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write finding: %w", err)
	}
	return s.file.Sync()
}

// Close closes the log. It is safe to call more than once.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
