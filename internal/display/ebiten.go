// Package display shows captured or received frames in a desktop window.
package display

import (
	"image"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Window renders the latest frame with Ebitengine, letterboxed to fit.
type Window struct {
	title string

	mu     sync.Mutex
	frame  *image.RGBA
	dirty  bool
	status string

	ebitenImage *ebiten.Image

	onStopKey func()
	onClose   func()

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Window.
type Option func(*Window)

// OnStopKey is called when Q or Escape is pressed.
func OnStopKey(fn func()) Option {
	return func(w *Window) { w.onStopKey = fn }
}

// OnClose is called when the user closes the window. The window stays open
// until Close is called.
func OnClose(fn func()) Option {
	return func(w *Window) { w.onClose = fn }
}

// NewWindow creates an Ebitengine window.
func NewWindow(title string, opts ...Option) *Window {
	w := &Window{
		title:  title,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetFrame updates the displayed frame (called from the capture or network goroutine).
func (w *Window) SetFrame(img *image.RGBA) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frame = img
	w.dirty = true
}

// SetStatus sets the overlay text drawn in the top-left corner.
func (w *Window) SetStatus(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
}

// Close ends the game loop at the next update.
func (w *Window) Close() {
	w.closeOnce.Do(func() { close(w.closed) })
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (w *Window) Run() error {
	ebiten.SetWindowSize(960, 600)
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(30)
	if err := ebiten.RunGame(w); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

// --- ebiten.Game interface ---

func (w *Window) Update() error {
	select {
	case <-w.closed:
		return ebiten.Termination
	default:
	}

	if ebiten.IsWindowBeingClosed() && w.onClose != nil {
		w.onClose()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if w.onStopKey != nil {
			w.onStopKey()
		}
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	frame := w.frame
	dirty := w.dirty
	w.dirty = false
	status := w.status
	w.mu.Unlock()

	if frame != nil {
		fb := frame.Bounds()
		if w.ebitenImage == nil ||
			w.ebitenImage.Bounds().Dx() != fb.Dx() ||
			w.ebitenImage.Bounds().Dy() != fb.Dy() {
			w.ebitenImage = ebiten.NewImage(fb.Dx(), fb.Dy())
			dirty = true
		}
		if dirty {
			w.ebitenImage.WritePixels(frame.Pix)
		}

		sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
		scale, offsetX, offsetY := aspectFitTransform(float64(sw), float64(sh), float64(fb.Dx()), float64(fb.Dy()))

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(offsetX, offsetY)
		screen.DrawImage(w.ebitenImage, op)
	}

	if status != "" {
		ebitenutil.DebugPrint(screen, status)
	}
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
