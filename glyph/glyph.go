// Package glyph provides fixed-cell glyph sources for text rendering.
//
// A Source maps a character to a fixed-size 1-bit bitmap. The default
// implementation adapts a font.Face from golang.org/x/image/font, so any
// fixed-width face (such as basicfont.Face7x13) can back a display's text
// renderer.
package glyph

import (
	"errors"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Source maps characters to fixed-size glyph bitmaps.
type Source interface {
	// Cell returns the glyph cell size in pixels. All glyphs from the
	// source have exactly this size.
	Cell() (w, h int)

	// Bitmap returns the bitmap for r. ok is false when the source has
	// no glyph for r.
	Bitmap(r rune) (b Bitmap, ok bool)
}

// Bitmap is a 1-bit glyph image. Rows are packed MSB-first and padded to
// whole bytes.
type Bitmap struct {
	W, H   int
	Stride int // Bytes per row
	Pix    []byte
}

// On reports whether the pixel at (x, y) is set. Out-of-range
// coordinates are unset.
func (b Bitmap) On(x, y int) bool {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return false
	}
	return b.Pix[y*b.Stride+x/8]&(0x80>>(x&7)) != 0
}

func (b *Bitmap) set(x, y int) {
	b.Pix[y*b.Stride+x/8] |= 0x80 >> (x & 7)
}

// FaceSource adapts a fixed-width font.Face to the Source interface.
type FaceSource struct {
	face   font.Face
	w, h   int
	ascent int
}

// FromFace creates a FaceSource from f. The cell width is the advance of
// 'M' and the cell height is ascent+descent; f must be a fixed-width
// face, proportional faces are rejected.
func FromFace(f font.Face) (*FaceSource, error) {
	m := f.Metrics()
	aw, ok := f.GlyphAdvance('M')
	if !ok {
		return nil, errors.New("glyph: face has no 'M' glyph")
	}
	iw, ok := f.GlyphAdvance('i')
	if !ok || iw != aw {
		return nil, errors.New("glyph: face is not fixed width")
	}
	return &FaceSource{
		face:   f,
		w:      aw.Ceil(),
		h:      (m.Ascent + m.Descent).Ceil(),
		ascent: m.Ascent.Ceil(),
	}, nil
}

// Basic7x13 returns a Source backed by basicfont.Face7x13, a 7x13 pixel
// fixed-width face covering printable ASCII and Unicode replacement
// characters.
func Basic7x13() *FaceSource {
	s, err := FromFace(basicfont.Face7x13)
	if err != nil {
		// basicfont.Face7x13 is fixed width; this cannot happen.
		panic(err)
	}
	return s
}

// Cell implements Source.
func (s *FaceSource) Cell() (w, h int) {
	return s.w, s.h
}

// Bitmap implements Source. The glyph is rasterized from the face's
// coverage mask; any coverage at or above half is a set pixel.
func (s *FaceSource) Bitmap(r rune) (Bitmap, bool) {
	dot := fixed.P(0, s.ascent)
	dr, mask, maskp, _, ok := s.face.Glyph(dot, r)
	if !ok {
		return Bitmap{}, false
	}

	b := Bitmap{
		W:      s.w,
		H:      s.h,
		Stride: (s.w + 7) / 8,
	}
	b.Pix = make([]byte, b.Stride*b.H)
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		for x := dr.Min.X; x < dr.Max.X; x++ {
			if y < 0 || y >= s.h || x < 0 || x >= s.w {
				continue
			}
			ma := mask.At(maskp.X+x-dr.Min.X, maskp.Y+y-dr.Min.Y)
			if a := color.AlphaModel.Convert(ma).(color.Alpha).A; a >= 0x80 {
				b.set(x, y)
			}
		}
	}
	return b, true
}

var _ Source = &FaceSource{}
