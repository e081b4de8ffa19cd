package encoder

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
)

// ditherThreshold is the lowest quality at which Floyd-Steinberg dithering is used.
const ditherThreshold = 0.5

// paletteSize maps quality in [0,1] to a palette of 2..256 colors.
func paletteSize(quality float64) int {
	n := int(math.Round(quality * 256))
	if n < 2 {
		n = 2
	}
	if n > 256 {
		n = 256
	}
	return n
}

// flatten returns a copy of src with every pixel fully opaque. Captured
// pixels are alpha-premultiplied, so this composites them over black.
func flatten(src *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]byte, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

type bucket struct {
	key     int
	count   uint64
	r, g, b uint64
}

// buildPalette picks the n most common colors of img after reducing it to
// 5 bits per channel. Each palette entry is the mean of its bucket.
func buildPalette(img *image.RGBA, n int) color.Palette {
	var buckets [1 << 15]bucket
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, bl := row[i], row[i+1], row[i+2]
			k := int(r>>3)<<10 | int(g>>3)<<5 | int(bl>>3)
			bk := &buckets[k]
			bk.count++
			bk.r += uint64(r)
			bk.g += uint64(g)
			bk.b += uint64(bl)
		}
	}

	used := make([]bucket, 0, 1024)
	for k := range buckets {
		if buckets[k].count > 0 {
			bk := buckets[k]
			bk.key = k
			used = append(used, bk)
		}
	}
	sort.Slice(used, func(i, j int) bool {
		if used[i].count != used[j].count {
			return used[i].count > used[j].count
		}
		return used[i].key < used[j].key
	})
	if len(used) > n {
		used = used[:n]
	}

	pal := make(color.Palette, 0, len(used))
	for _, bk := range used {
		pal = append(pal, color.RGBA{
			R: uint8(bk.r / bk.count),
			G: uint8(bk.g / bk.count),
			B: uint8(bk.b / bk.count),
			A: 0xff,
		})
	}
	if len(pal) == 0 {
		pal = append(pal, color.RGBA{A: 0xff})
	}
	return pal
}

// toPaletted converts a captured frame to an opaque paletted image.
func toPaletted(src *image.RGBA, quality float64) *image.Paletted {
	opaque := flatten(src)
	b := opaque.Bounds()
	dst := image.NewPaletted(b, buildPalette(opaque, paletteSize(quality)))
	if quality >= ditherThreshold {
		draw.FloydSteinberg.Draw(dst, b, opaque, b.Min)
	} else {
		draw.Draw(dst, b, opaque, b.Min, draw.Src)
	}
	return dst
}
