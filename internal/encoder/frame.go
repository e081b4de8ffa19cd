package encoder

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
)

// Encoder encodes a single frame into bytes.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	// Ext is the file extension for the encoded format, without the dot.
	Ext() string
}

// Decoder turns one encoded frame back into pixels.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}

var bufPool = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 256<<10)) },
}

func encodeTo(write func(w io.Writer) error) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := write(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// JPEGEncoder encodes frames for the live share stream.
type JPEGEncoder struct {
	opts jpeg.Options
}

// NewJPEGEncoder creates a JPEG encoder; quality is clamped to 1-100.
func NewJPEGEncoder(quality int) *JPEGEncoder {
	return &JPEGEncoder{opts: jpeg.Options{Quality: min(max(quality, 1), 100)}}
}

func (e *JPEGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	return encodeTo(func(w io.Writer) error { return jpeg.Encode(w, img, &e.opts) })
}

func (e *JPEGEncoder) Ext() string { return "jpg" }

// PNGEncoder encodes frames losslessly for the scratch directory, favouring
// speed over size.
type PNGEncoder struct {
	enc png.Encoder
}

func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{enc: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (e *PNGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	return encodeTo(func(w io.Writer) error { return e.enc.Encode(w, img) })
}

func (e *PNGEncoder) Ext() string { return "png" }

// FrameDecoder decodes JPEG or PNG frames into RGBA rooted at 0,0.
type FrameDecoder struct{}

func (FrameDecoder) Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	// JPEG decodes to YCbCr.
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
