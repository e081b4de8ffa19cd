// Package scheduler runs a tick function repeatedly with a fixed delay
// between the end of one tick and the start of the next.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned by Start on a scheduler that has left Idle.
var ErrAlreadyStarted = errors.New("scheduler already started")

// State is the scheduler lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// TickFunc does the work of one tick. A returned error is logged and the
// schedule continues.
type TickFunc func() error

// Scheduler fires a TickFunc once per interval until stopped. Each tick is
// armed when the previous one completes, so drift accumulates.
type Scheduler struct {
	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}

	after   func(time.Duration) <-chan time.Time
	onError func(error)
	log     *slog.Logger

	ticks    atomic.Uint64
	failures atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimer replaces time.After as the source of tick deadlines.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) { s.after = after }
}

// WithErrorHandler is called with every failed tick's error, on the tick goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithLogger sets the logger for failed ticks.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		after: time.After,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins firing tick every interval on a dedicated goroutine.
// A scheduler runs at most once.
func (s *Scheduler) Start(interval time.Duration, tick TickFunc) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyStarted
	}
	s.state = Running
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, tick)
	return nil
}

// Stop halts the schedule. When Stop returns no tick is running and none
// will run again. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Running {
		close(s.stopCh)
	}
	s.state = Stopped
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns the number of successful and failed ticks so far.
func (s *Scheduler) Stats() (ticks, failures uint64) {
	return s.ticks.Load(), s.failures.Load()
}

func (s *Scheduler) loop(interval time.Duration, tick TickFunc) {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.after(interval):
		}

		if err := tick(); err != nil {
			n := s.failures.Add(1)
			s.log.Warn("tick failed", "err", err, "failures", n)
			if s.onError != nil {
				s.onError(err)
			}
			continue
		}
		s.ticks.Add(1)
	}
}
