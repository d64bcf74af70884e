package ssd1351

import (
	"errors"

	"periph.io/x/devices/v3/ssd1351/rgb565"
)

// Errors returned by WriteString.
var (
	// ErrOffScreen is returned when the cursor is, or would run, past
	// the bottom of the display. There is no automatic scrolling.
	ErrOffScreen = errors.New("ssd1351: text past bottom of display")

	// ErrNothingToRender is returned when the string contains no
	// renderable characters.
	ErrNothingToRender = errors.New("ssd1351: no renderable characters")
)

// SetCursor places the text cursor at the given character cell. Cell
// (0, 0) is the top-left glyph cell. The cursor is only reset by
// explicit re-location, never by Init.
func (d *Dev) SetCursor(col, row int) {
	d.col = col
	d.row = row
}

// Cursor returns the current text cursor position in character cells.
func (d *Dev) Cursor() (col, row int) {
	return d.col, d.row
}

// WriteString writes s at the current cursor position, advancing the
// cursor one cell per glyph.
//
// A newline moves the cursor to the left margin of the next row without
// emitting any bus traffic, as does reaching the right edge. Set glyph
// pixels are drawn in c, unset pixels in the current background color
// (the color of the last FillScreen, black by default).
//
// Characters without a glyph in the configured source are rendered as a
// blank background cell and the cursor advances.
//
// It returns ErrOffScreen as soon as a glyph would land past the bottom
// of the display; glyphs before the boundary have already been drawn
// and nothing is emitted for the remainder. It returns
// ErrNothingToRender when the string contained no renderable
// characters.
func (d *Dev) WriteString(s string, c rgb565.Color) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}

	cw, ch := d.font.Cell()
	cols := d.rect.Dx() / cw
	rows := d.rect.Dy() / ch

	rendered := 0
	for _, r := range s {
		if r == '\n' {
			d.col = 0
			d.row++
			continue
		}
		if d.col >= cols {
			d.col = 0
			d.row++
		}
		if d.row >= rows {
			return ErrOffScreen
		}
		if err := d.drawGlyph(r, c, cw, ch); err != nil {
			return err
		}
		d.col++
		rendered++
	}

	if rendered == 0 {
		return ErrNothingToRender
	}
	return nil
}

// drawGlyph streams one glyph cell at the cursor position. Unknown
// characters produce a blank cell.
func (d *Dev) drawGlyph(r rune, c rgb565.Color, cw, ch int) error {
	if err := d.SetWindow(d.col*cw, d.row*ch, cw, ch); err != nil {
		return err
	}

	b, ok := d.font.Bitmap(r)
	if !ok {
		return d.streamColor(d.bg, cw*ch)
	}

	fgHi, fgLo := c.Bytes()
	bgHi, bgLo := d.bg.Bytes()
	buf := make([]byte, cw*ch*2)
	i := 0
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			if b.On(x, y) {
				buf[i], buf[i+1] = fgHi, fgLo
			} else {
				buf[i], buf[i+1] = bgHi, bgLo
			}
			i += 2
		}
	}
	return d.WriteData(buf)
}
