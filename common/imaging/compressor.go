// Package imaging normalizes uploaded scan images before persistence:
// decode, flatten to RGB, bound dimensions, re-encode as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Decoders for the formats scanners and browsers actually produce.
	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Compressor shrinks raw image bytes to a canonical representation.
// Compression is an optimization, not a correctness requirement: a failed
// compression must never block persistence, so Compress always hands back
// storable bytes.
type Compressor struct {
	maxDimension int
	jpegQuality  int
}

// Compressed is the result of a Compress call. Bytes is always usable: the
// normalized JPEG when Applied is true, the caller's original bytes otherwise.
type Compressed struct {
	Bytes   []byte
	Applied bool
	Width   int
	Height  int
}

// NewCompressor creates a compressor bounding both image dimensions to
// maxDimension and re-encoding at the given JPEG quality.
func NewCompressor(maxDimension, jpegQuality int) *Compressor {
	return &Compressor{
		maxDimension: maxDimension,
		jpegQuality:  jpegQuality,
	}
}

// Compress decodes raw, flattens any alpha or palette representation to
// 3-channel color, downsamples so both dimensions fit the bound, and
// re-encodes as JPEG. On any decode or encode failure the original bytes are
// returned unchanged together with the error; the caller logs and persists
// what it has.
func (c *Compressor) Compress(raw []byte) (Compressed, error) {
	degraded := Compressed{Bytes: raw, Applied: false}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return degraded, fmt.Errorf("decode image: %w", err)
	}

	rgb := flatten(src)
	bounded := c.bound(rgb)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, bounded, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		return degraded, fmt.Errorf("encode jpeg (source format %s): %w", format, err)
	}

	size := bounded.Bounds().Size()
	return Compressed{
		Bytes:   buf.Bytes(),
		Applied: true,
		Width:   size.X,
		Height:  size.Y,
	}, nil
}

// flatten redraws the source into an RGBA buffer anchored at the origin,
// collapsing palette and alpha representations. JPEG encoding then discards
// the alpha channel, leaving canonical 3-channel color.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// bound downsamples img preserving aspect ratio so both dimensions are at
// most the configured maximum. Images already inside the bound pass through.
func (c *Compressor) bound(img *image.RGBA) image.Image {
	size := img.Bounds().Size()
	if size.X <= c.maxDimension && size.Y <= c.maxDimension {
		return img
	}

	scale := float64(c.maxDimension) / float64(size.X)
	if size.Y > size.X {
		scale = float64(c.maxDimension) / float64(size.Y)
	}

	w := int(float64(size.X) * scale)
	h := int(float64(size.Y) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
