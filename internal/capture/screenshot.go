//go:build !darwin

package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenshotCapturer captures whole displays with kbinani/screenshot. Window
// targets are only resolvable on macOS.
type ScreenshotCapturer struct{}

// NewScreenshotCapturer creates a display capturer.
func NewScreenshotCapturer() *ScreenshotCapturer {
	return &ScreenshotCapturer{}
}

// NewCapturer returns the capturer for this platform.
func NewCapturer() Capturer {
	return NewScreenshotCapturer()
}

func (c *ScreenshotCapturer) Capture(t Target) (*image.RGBA, error) {
	if t.Kind != KindDisplay {
		return nil, fmt.Errorf("%s: window capture requires macOS: %w", t, ErrTargetUnavailable)
	}
	n := screenshot.NumActiveDisplays()
	if int(t.ID) >= n {
		return nil, fmt.Errorf("display index %d out of range (have %d displays): %w", t.ID, n, ErrTargetUnavailable)
	}
	img, err := screenshot.CaptureDisplay(int(t.ID))
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", t, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%s: %w", t, ErrCaptureEmpty)
	}
	// Secondary displays report their desktop position; frames start at 0,0.
	img.Rect = img.Rect.Sub(img.Rect.Min)
	return img, nil
}

// DisplayLocator resolves only "display:N" identifiers.
type DisplayLocator struct{}

// NewLocator returns the locator for this platform.
func NewLocator() Locator {
	return DisplayLocator{}
}

func (DisplayLocator) Find(ident string) (Target, error) {
	t, ok, err := ParseDisplay(ident)
	if !ok {
		return Target{}, fmt.Errorf("application %q: window lookup requires macOS: %w", ident, ErrTargetUnavailable)
	}
	return t, err
}
