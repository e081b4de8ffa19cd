// Package session drives one recording: locate the target, capture frames on
// a fixed cadence until a stop is requested, then encode them once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/junsooki/simrec/internal/capture"
	"github.com/junsooki/simrec/internal/encoder"
	"github.com/junsooki/simrec/internal/scheduler"
	"github.com/junsooki/simrec/internal/store"
)

var (
	// ErrNotIdle is returned by Run on a controller that already ran.
	ErrNotIdle = errors.New("session already started")
	// ErrEncodeFailed wraps any failure of the final encode step.
	ErrEncodeFailed = errors.New("encode failed")
)

// State is the controller lifecycle state.
type State int32

const (
	Idle State = iota
	Active
	Finalizing
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Finalizing:
		return "finalizing"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// AnimationEncoder turns the full frame sequence into an artifact.
type AnimationEncoder interface {
	Encode(ctx context.Context, frames []capture.Frame, opts encoder.Options) (encoder.Result, error)
}

// Options configure a recording session. They are fixed once capture starts.
type Options struct {
	// Target is a bundle identifier or "display:N".
	Target string
	// FPS is the capture cadence.
	FPS int
	// Encoding holds the artifact properties. A zero FrameDelay is derived from FPS.
	Encoding encoder.Options
	// Duration stops the session automatically when positive.
	Duration time.Duration

	StoreOptions     []store.Option
	SchedulerOptions []scheduler.Option
}

// Controller owns a single capture session from target lookup to exit status.
type Controller struct {
	id       string
	locator  capture.Locator
	capturer capture.Capturer
	enc      AnimationEncoder
	opts     Options
	interval time.Duration
	log      *slog.Logger

	store *store.Store
	sched *scheduler.Scheduler

	stopOnce   sync.Once
	stopCh     chan struct{}
	done       chan struct{}
	targetLost atomic.Bool

	mu       sync.Mutex
	state    State
	reason   string
	target   capture.Target
	deadline *time.Timer
	result   encoder.Result
	err      error
}

// New creates an idle controller. A nil logger uses slog.Default.
func New(loc capture.Locator, capturer capture.Capturer, enc AnimationEncoder, opts Options, log *slog.Logger) (*Controller, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", opts.FPS)
	}
	if log == nil {
		log = slog.Default()
	}
	interval := time.Second / time.Duration(opts.FPS)
	if opts.Encoding.FrameDelay == 0 {
		opts.Encoding.FrameDelay = interval
	}

	id := uuid.NewString()[:8]
	log = log.With("session", id)

	c := &Controller{
		id:       id,
		locator:  loc,
		capturer: capturer,
		enc:      enc,
		opts:     opts,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	storeOpts := append([]store.Option{store.WithLogger(log)}, opts.StoreOptions...)
	c.store = store.New(storeOpts...)

	schedOpts := append([]scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithErrorHandler(c.tickFailed),
	}, opts.SchedulerOptions...)
	c.sched = scheduler.New(schedOpts...)

	return c, nil
}

// ID returns the session identifier used in logs.
func (c *Controller) ID() string { return c.id }

// begin resolves the target and starts capturing. If the target cannot be
// found the controller terminates with failure and no capture ever runs.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrNotIdle
	}

	t, err := c.locator.Find(c.opts.Target)
	if err != nil {
		err = fmt.Errorf("locate %q: %w", c.opts.Target, err)
		c.terminateLocked(encoder.Result{}, err)
		c.log.Error("target not found", "target", c.opts.Target, "err", err)
		return err
	}
	c.target = t

	if err := c.sched.Start(c.interval, c.tick); err != nil {
		err = fmt.Errorf("start capture: %w", err)
		c.terminateLocked(encoder.Result{}, err)
		return err
	}
	c.state = Active
	if c.opts.Duration > 0 {
		c.deadline = time.AfterFunc(c.opts.Duration, func() {
			c.RequestStop("duration elapsed")
		})
	}

	c.log.Info("capture started",
		"target", c.opts.Target,
		"handle", t.String(),
		"fps", c.opts.FPS,
		"duration", c.opts.Duration)
	return nil
}

// RequestStop asks the session to finish. Only the first call takes effect
// and reports true. It never blocks on capture or encoding.
func (c *Controller) RequestStop(reason string) bool {
	took := false
	c.stopOnce.Do(func() {
		took = true
		c.mu.Lock()
		c.reason = reason
		if c.state == Active {
			c.state = Finalizing
		}
		c.mu.Unlock()
		close(c.stopCh)
	})
	return took
}

// Run begins the session and blocks until it terminates. Cancelling ctx is
// a stop request; encoding still completes after cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		c.RequestStop("interrupted")
	case <-c.stopCh:
	}
	return c.finalize(context.WithoutCancel(ctx))
}

func (c *Controller) finalize(ctx context.Context) error {
	c.mu.Lock()
	c.state = Finalizing
	reason := c.reason
	if c.deadline != nil {
		c.deadline.Stop()
	}
	c.mu.Unlock()

	c.sched.Stop()
	frames := c.store.Snapshot()
	ticks, failures := c.sched.Stats()
	c.log.Info("capture stopped",
		"reason", reason,
		"frames", len(frames),
		"ticks", ticks,
		"failed_ticks", failures)

	res, err := c.enc.Encode(ctx, frames, c.opts.Encoding)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEncodeFailed, err)
		c.log.Error("encode failed", "frames", len(frames), "err", err)
	} else if c.targetLost.Load() {
		err = fmt.Errorf("target lost during capture: %w", capture.ErrTargetUnavailable)
	}

	c.mu.Lock()
	c.terminateLocked(res, err)
	c.mu.Unlock()
	return err
}

func (c *Controller) terminateLocked(res encoder.Result, err error) {
	c.state = Terminated
	c.result = res
	c.err = err
	close(c.done)
}

func (c *Controller) tick() error {
	img, err := c.capturer.Capture(c.target)
	if err != nil {
		return err
	}
	c.store.Append(img)
	return nil
}

func (c *Controller) tickFailed(err error) {
	if errors.Is(err, capture.ErrTargetUnavailable) && !c.targetLost.Swap(true) {
		c.log.Error("target disappeared", "err", err)
		c.RequestStop("target lost")
	}
}

// Done is closed once the controller has terminated.
func (c *Controller) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns why the session was stopped, if it was.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Result returns the artifact description and terminal error.
func (c *Controller) Result() (encoder.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.err
}

// ExitCode is 0 only for a session that terminated with a written artifact.
func (c *Controller) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Terminated && c.err == nil {
		return 0
	}
	return 1
}
