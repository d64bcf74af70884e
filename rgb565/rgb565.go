// Package rgb565 provides the 16-bit 5-6-5 color format native to the SSD1351 display.
//
// Each pixel is packed as RRRRRGGG GGGBBBBB and transmitted high byte first,
// independent of host endianness. This package provides the Color type, a
// palette of common colors and the RGB565 image implementation.
package rgb565

import (
	"encoding/binary"
	"image"
	"image/color"
)

// Color is a 16-bit color in RGB 5-6-5 packed format.
// Any 16-bit value is valid; the named palette below is a convenience,
// not a completeness contract.
type Color uint16

// Common colors in RGB 5-6-5.
const (
	Black       Color = 0x0000
	Navy        Color = 0x000F
	DarkGreen   Color = 0x03E0
	DarkCyan    Color = 0x03EF
	Maroon      Color = 0x7800
	Purple      Color = 0x780F
	Olive       Color = 0x7BE0
	LightGrey   Color = 0xC618
	DarkGrey    Color = 0x7BEF
	Blue        Color = 0x001F
	Green       Color = 0x07E0
	Cyan        Color = 0x07FF
	Red         Color = 0xF800
	Magenta     Color = 0xF81F
	Yellow      Color = 0xFFE0
	White       Color = 0xFFFF
	Orange      Color = 0xFD20
	GreenYellow Color = 0xAFE5
	Pink        Color = 0xF81F
)

// RGBA converts the color to standard 16-bit-per-channel RGBA.
// Each channel is expanded by bit replication so that full-scale 5 or
// 6 bit values map to 0xFFFF.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c>>11) & 0x1F
	g = uint32(c>>5) & 0x3F
	b = uint32(c) & 0x1F
	r = r<<3 | r>>2
	g = g<<2 | g>>4
	b = b<<3 | b>>2
	return r * 0x101, g * 0x101, b * 0x101, 0xFFFF
}

// Bytes returns the 2-byte wire representation of the color, high byte
// first, as expected by the display controller.
func (c Color) Bytes() (hi, lo byte) {
	return byte(c >> 8), byte(c)
}

// FromBytes reassembles a color from its wire representation. It is the
// inverse of Bytes: FromBytes(c.Bytes()) == c for all colors.
func FromBytes(hi, lo byte) Color {
	return Color(uint16(hi)<<8 | uint16(lo))
}

// toColor converts any color.Color to Color.
func toColor(c color.Color) color.Color {
	if c, ok := c.(Color); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	// RGBA returns 16-bit channels; keep the top 5/6/5 bits.
	return Color(r>>11<<11 | g>>10<<5 | b>>11)
}

// Model converts colors to Color.
var Model = color.ModelFunc(toColor)

// Image is an in-memory RGB 5-6-5 image stored in wire order: 2 bytes per
// pixel, high byte first. Its Pix slice can be streamed to the display
// without conversion.
type Image struct {
	Pix    []byte          // Pixel data, 2 bytes per pixel, big-endian
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// New creates an Image with the specified bounds, filled with black.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	stride := w * 2
	return &Image{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the Color of the pixel at (x, y).
func (p *Image) RGB565At(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Black
	}
	o := p.pixOffset(x, y)
	return Color(binary.BigEndian.Uint16(p.Pix[o : o+2]))
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, Model.Convert(c).(Color))
}

// SetRGB565 sets the Color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	o := p.pixOffset(x, y)
	binary.BigEndian.PutUint16(p.Pix[o:o+2], uint16(c))
}

// pixOffset returns the byte offset of the pixel at (x, y).
func (p *Image) pixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}
