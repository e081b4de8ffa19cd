package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junsooki/simrec/internal/capture"
)

var (
	// ErrNoFrames is returned when there is nothing to encode. No file is written.
	ErrNoFrames = errors.New("no frames to encode")
	// ErrInvalidOptions is returned for out-of-range encoding options.
	ErrInvalidOptions = errors.New("invalid encoding options")
)

// Options are the global properties of an animation. They are fixed before
// the first frame is appended.
type Options struct {
	// LoopCount is the number of repeats; 0 loops forever. A single-frame
	// GIF carries no loop extension, so it has no effect there.
	LoopCount int
	// FrameDelay is the display time of every frame, at most MaxFrameDelay.
	FrameDelay time.Duration
	// Quality in [0,1] controls palette size and dithering.
	Quality float64
	// Path is the destination file.
	Path string
}

// Validate checks that o describes an encodable animation.
func (o Options) Validate() error {
	switch {
	case o.LoopCount < 0 || o.LoopCount > math.MaxUint16:
		return fmt.Errorf("loop count %d out of range: %w", o.LoopCount, ErrInvalidOptions)
	case o.FrameDelay <= 0:
		return fmt.Errorf("frame delay %v must be positive: %w", o.FrameDelay, ErrInvalidOptions)
	case DelayHundredths(o.FrameDelay) > math.MaxUint16:
		return fmt.Errorf("frame delay %v exceeds %v: %w", o.FrameDelay, MaxFrameDelay, ErrInvalidOptions)
	case o.Quality < 0 || o.Quality > 1 || math.IsNaN(o.Quality):
		return fmt.Errorf("quality %v outside [0,1]: %w", o.Quality, ErrInvalidOptions)
	case o.Path == "":
		return fmt.Errorf("empty output path: %w", ErrInvalidOptions)
	}
	return nil
}

// MaxFrameDelay is the longest delay a GIF frame can declare.
const MaxFrameDelay = math.MaxUint16 * 10 * time.Millisecond

// DelayHundredths is the GIF frame delay for d, in hundredths of a second.
func DelayHundredths(d time.Duration) int {
	cs := int(math.Round(float64(d) / float64(10*time.Millisecond)))
	if cs < 1 {
		cs = 1
	}
	return cs
}

// Result describes a finished artifact.
type Result struct {
	Path   string
	Frames int
	Bytes  int
}

// GIFEncoder encodes a whole frame sequence into a looping animated GIF.
type GIFEncoder struct {
	workers int
	log     *slog.Logger
}

// NewGIFEncoder creates a GIF encoder. A nil logger uses slog.Default.
func NewGIFEncoder(log *slog.Logger) *GIFEncoder {
	if log == nil {
		log = slog.Default()
	}
	return &GIFEncoder{workers: runtime.NumCPU(), log: log}
}

// Encode converts frames in order and writes the artifact to opts.Path. The
// file only appears once the complete animation has been encoded.
func (e *GIFEncoder) Encode(ctx context.Context, frames []capture.Frame, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if len(frames) == 0 {
		return Result{}, ErrNoFrames
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Index <= frames[i-1].Index {
			return Result{}, fmt.Errorf("frame %d follows frame %d: out of order", frames[i].Index, frames[i-1].Index)
		}
	}

	start := time.Now()
	anim := &gif.GIF{
		LoopCount: opts.LoopCount,
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
	}
	delay := DelayHundredths(opts.FrameDelay)

	// Frames may differ in size if the window was resized while recording.
	for _, f := range frames {
		if w := f.Width(); w > anim.Config.Width {
			anim.Config.Width = w
		}
		if h := f.Height(); h > anim.Config.Height {
			anim.Config.Height = h
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			anim.Image[i] = toPaletted(f.Image, opts.Quality)
			anim.Delay[i] = delay
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("convert frames: %w", err)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return Result{}, fmt.Errorf("encode gif: %w", err)
	}
	if err := writeAtomic(opts.Path, buf.Bytes()); err != nil {
		return Result{}, err
	}

	e.log.Info("animation written",
		"path", opts.Path,
		"frames", len(frames),
		"bytes", buf.Len(),
		"delay_cs", delay,
		"loop", opts.LoopCount,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return Result{Path: opts.Path, Frames: len(frames), Bytes: buf.Len()}, nil
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".simrec-*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
