// Package store holds the frames of one recording session in capture order.
package store

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/junsooki/simrec/internal/capture"
)

// Observer is notified of every appended frame, after it is stored. It runs
// on the appending goroutine and must not block.
type Observer func(f capture.Frame)

// Store is an ordered, append-only in-memory frame buffer with an optional
// on-disk scratch mirror. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	frames []capture.Frame

	scratch   *Scratch
	observers []Observer
	log       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithScratch mirrors each appended frame to disk.
func WithScratch(s *Scratch) Option {
	return func(st *Store) { st.scratch = s }
}

// WithObserver registers an append observer.
func WithObserver(o Observer) Option {
	return func(st *Store) { st.observers = append(st.observers, o) }
}

// WithLogger sets the logger used for scratch write failures.
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) { st.log = l }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		frames: make([]capture.Frame, 0, 256),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores img as the next frame and returns it with its assigned index.
func (s *Store) Append(img *image.RGBA) capture.Frame {
	s.mu.Lock()
	f := capture.Frame{
		Index:     len(s.frames),
		Image:     img,
		Timestamp: time.Now(),
	}
	s.frames = append(s.frames, f)
	s.mu.Unlock()

	if s.scratch != nil {
		if path, err := s.scratch.Write(f); err != nil {
			s.log.Warn("scratch write failed", "frame", f.Index, "err", err)
		} else {
			s.log.Debug("scratch frame written", "path", path)
		}
	}
	for _, o := range s.observers {
		o(f)
	}
	return f
}

// Snapshot returns the frames stored so far in capture order. Later appends
// are not visible in the returned slice.
func (s *Store) Snapshot() []capture.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capture.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Count returns the number of stored frames.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
