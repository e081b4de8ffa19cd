package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTargetUnavailable means the target no longer resolves to an on-screen surface.
	ErrTargetUnavailable = errors.New("target unavailable")
	// ErrCaptureEmpty means the capture call returned no image data.
	ErrCaptureEmpty = errors.New("capture returned no image")
)

// Frame represents a captured frame. Index is assigned by the frame store in
// capture order and is contiguous from 0.
type Frame struct {
	Index     int
	Image     *image.RGBA
	Timestamp time.Time
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Image.Bounds().Dy() }

// TargetKind distinguishes window targets from whole-display targets.
type TargetKind int

const (
	KindWindow TargetKind = iota
	KindDisplay
)

// Target is an opaque handle to a capturable surface.
type Target struct {
	Kind TargetKind
	ID   uint32 // window number or display index
}

func (t Target) String() string {
	if t.Kind == KindDisplay {
		return fmt.Sprintf("display:%d", t.ID)
	}
	return fmt.Sprintf("window:%d", t.ID)
}

// Capturer grabs one still image of a target.
type Capturer interface {
	Capture(t Target) (*image.RGBA, error)
}

// Locator resolves an application identifier to a target.
type Locator interface {
	Find(ident string) (Target, error)
}

const displayPrefix = "display:"

// ParseDisplay reports whether ident names a whole display ("display:N").
func ParseDisplay(ident string) (Target, bool, error) {
	rest, ok := strings.CutPrefix(ident, displayPrefix)
	if !ok {
		return Target{}, false, nil
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return Target{}, true, fmt.Errorf("parse display %q: %w", ident, err)
	}
	return Target{Kind: KindDisplay, ID: uint32(n)}, true, nil
}
