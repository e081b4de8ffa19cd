package encoder

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/simrec/internal/capture"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func framesOf(imgs ...*image.RGBA) []capture.Frame {
	out := make([]capture.Frame, len(imgs))
	for i, img := range imgs {
		out[i] = capture.Frame{Index: i, Image: img}
	}
	return out
}

func decodeFile(t *testing.T, path string) *gif.GIF {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	return g
}

func defaultOptions(t *testing.T) Options {
	return Options{
		LoopCount:  0,
		FrameDelay: 200 * time.Millisecond,
		Quality:    1.0,
		Path:       filepath.Join(t.TempDir(), "animation.gif"),
	}
}

func TestEncodeDeclaresDelayAndLoopCount(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		loop  int
		want  int
	}{
		{name: "5fps infinite", delay: 200 * time.Millisecond, loop: 0, want: 20},
		{name: "10fps three loops", delay: 100 * time.Millisecond, loop: 3, want: 10},
		{name: "30fps", delay: time.Second / 30, loop: 1, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions(t)
			opts.FrameDelay = tt.delay
			opts.LoopCount = tt.loop

			frames := framesOf(
				solid(8, 8, color.RGBA{255, 0, 0, 255}),
				solid(8, 8, color.RGBA{0, 255, 0, 255}),
				solid(8, 8, color.RGBA{0, 0, 255, 255}),
			)
			res, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Frames)

			info, err := os.Stat(opts.Path)
			require.NoError(t, err)
			assert.Equal(t, int64(res.Bytes), info.Size())

			g := decodeFile(t, opts.Path)
			require.Len(t, g.Image, 3)
			assert.Equal(t, tt.loop, g.LoopCount)
			for i, d := range g.Delay {
				assert.Equal(t, tt.want, d, "frame %d", i)
			}
		})
	}
}

func TestEncodePreservesFrameOrder(t *testing.T) {
	colors := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 255, 255, 255},
	}
	imgs := make([]*image.RGBA, len(colors))
	for i, c := range colors {
		imgs[i] = solid(6, 6, c)
	}
	opts := defaultOptions(t)

	_, err := NewGIFEncoder(nil).Encode(context.Background(), framesOf(imgs...), opts)
	require.NoError(t, err)

	g := decodeFile(t, opts.Path)
	require.Len(t, g.Image, len(colors))
	for i, c := range colors {
		r, gr, b, a := g.Image[i].At(3, 3).RGBA()
		assert.Equal(t, [4]uint32{uint32(c.R) * 0x101, uint32(c.G) * 0x101, uint32(c.B) * 0x101, 0xffff},
			[4]uint32{r, gr, b, a}, "frame %d", i)
	}
}

func TestEncodeZeroFramesWritesNothing(t *testing.T) {
	opts := defaultOptions(t)

	_, err := NewGIFEncoder(nil).Encode(context.Background(), nil, opts)
	assert.ErrorIs(t, err, ErrNoFrames)

	_, statErr := os.Stat(opts.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEncodeStripsAlpha(t *testing.T) {
	translucent := solid(4, 4, color.RGBA{100, 50, 0, 128})
	transparent := solid(4, 4, color.RGBA{0, 0, 0, 0})
	opts := defaultOptions(t)

	_, err := NewGIFEncoder(nil).Encode(context.Background(), framesOf(translucent, transparent), opts)
	require.NoError(t, err)

	g := decodeFile(t, opts.Path)
	for i, img := range g.Image {
		for _, c := range img.Palette {
			_, _, _, a := c.RGBA()
			assert.Equal(t, uint32(0xffff), a, "frame %d has a transparent palette entry", i)
		}
	}
}

func TestEncodeMixedFrameSizes(t *testing.T) {
	opts := defaultOptions(t)
	frames := framesOf(solid(4, 4, color.RGBA{1, 2, 3, 255}), solid(10, 6, color.RGBA{4, 5, 6, 255}))

	_, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
	require.NoError(t, err)

	g := decodeFile(t, opts.Path)
	assert.Equal(t, 10, g.Config.Width)
	assert.Equal(t, 6, g.Config.Height)
}

func TestEncodeRejectsOutOfOrderFrames(t *testing.T) {
	opts := defaultOptions(t)
	frames := []capture.Frame{
		{Index: 1, Image: solid(2, 2, color.RGBA{A: 255})},
		{Index: 0, Image: solid(2, 2, color.RGBA{A: 255})},
	}

	_, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
	assert.Error(t, err)
	_, statErr := os.Stat(opts.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEncodeInvalidOptions(t *testing.T) {
	frames := framesOf(solid(2, 2, color.RGBA{A: 255}))
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"quality above one", func(o *Options) { o.Quality = 1.5 }},
		{"negative quality", func(o *Options) { o.Quality = -0.1 }},
		{"negative loop", func(o *Options) { o.LoopCount = -1 }},
		{"zero delay", func(o *Options) { o.FrameDelay = 0 }},
		{"delay beyond gif range", func(o *Options) { o.FrameDelay = 700 * time.Second }},
		{"loop beyond gif range", func(o *Options) { o.LoopCount = 65536 }},
		{"empty path", func(o *Options) { o.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions(t)
			tt.mutate(&opts)
			_, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestEncodeUnwritableDestination(t *testing.T) {
	opts := defaultOptions(t)
	opts.Path = filepath.Join(t.TempDir(), "missing", "animation.gif")
	frames := framesOf(solid(2, 2, color.RGBA{A: 255}), solid(2, 2, color.RGBA{A: 255}))

	_, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
	assert.Error(t, err)
	_, statErr := os.Stat(opts.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEncodeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := defaultOptions(t)

	_, err := NewGIFEncoder(nil).Encode(ctx, framesOf(solid(2, 2, color.RGBA{A: 255})), opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLowQualityShrinksPalette(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}

	low := toPaletted(img, 0)
	high := toPaletted(img, 1)

	assert.Len(t, low.Palette, 2)
	assert.Len(t, high.Palette, 256)
}

func TestPaletteSize(t *testing.T) {
	assert.Equal(t, 2, paletteSize(0))
	assert.Equal(t, 128, paletteSize(0.5))
	assert.Equal(t, 256, paletteSize(1))
}

func TestDelayHundredths(t *testing.T) {
	assert.Equal(t, 20, DelayHundredths(200*time.Millisecond))
	assert.Equal(t, 100, DelayHundredths(time.Second))
	assert.Equal(t, 1, DelayHundredths(time.Millisecond))
}

func TestEncodeLongestDelay(t *testing.T) {
	opts := defaultOptions(t)
	opts.FrameDelay = MaxFrameDelay
	frames := framesOf(solid(2, 2, color.RGBA{A: 255}), solid(2, 2, color.RGBA{R: 255, A: 255}))

	_, err := NewGIFEncoder(nil).Encode(context.Background(), frames, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{65535, 65535}, decodeFile(t, opts.Path).Delay)
}

func TestEncodeSingleFrameHasNoLoopExtension(t *testing.T) {
	opts := defaultOptions(t)
	opts.LoopCount = 3

	_, err := NewGIFEncoder(nil).Encode(context.Background(), framesOf(solid(2, 2, color.RGBA{A: 255})), opts)
	require.NoError(t, err)

	g := decodeFile(t, opts.Path)
	assert.Len(t, g.Image, 1)
	assert.Equal(t, -1, g.LoopCount)
}
