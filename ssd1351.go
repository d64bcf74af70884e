// Package ssd1351 controls a SSD1351 color OLED display via SPI.
//
// The SSD1351 is a 16-bit color OLED controller supporting up to 128x128
// pixels. Common display resolutions are 128x96 and 128x128.
//
// See the examples for how to use this package.
package ssd1351

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"periph.io/x/devices/v3/ssd1351/glyph"
	"periph.io/x/devices/v3/ssd1351/rgb565"
)

// SSD1351 command set. See the datasheet, section 9.
const (
	_SETCOLUMN      = 0x15
	_SETROW         = 0x75
	_WRITERAM       = 0x5C
	_READRAM        = 0x5D
	_HORIZSCROLL    = 0x96
	_STOPSCROLL     = 0x9E
	_STARTSCROLL    = 0x9F
	_SETREMAP       = 0xA0
	_STARTLINE      = 0xA1
	_DISPLAYOFFSET  = 0xA2
	_DISPLAYALLOFF  = 0xA4
	_DISPLAYALLON   = 0xA5
	_NORMALDISPLAY  = 0xA6
	_INVERTDISPLAY  = 0xA7
	_FUNCTIONSELECT = 0xAB
	_DISPLAYOFF     = 0xAE
	_DISPLAYON      = 0xAF
	_PRECHARGE      = 0xB1
	_DISPLAYENHANCE = 0xB2
	_CLOCKDIV       = 0xB3
	_SETVSL         = 0xB4
	_SETGPIO        = 0xB5
	_PRECHARGE2     = 0xB6
	_SETGRAY        = 0xB8
	_USELUT         = 0xB9
	_PRECHARGELEVEL = 0xBB
	_VCOMH          = 0xBE
	_CONTRASTABC    = 0xC1
	_CONTRASTMASTER = 0xC7
	_MUXRATIO       = 0xCA
	_COMMANDLOCK    = 0xFD
)

// Default display dimensions in pixels.
const (
	DefaultWidth  = 128
	DefaultHeight = 96
)

// maxDim is the controller's RAM size in both dimensions.
const maxDim = 128

// streamChunk is the intermediate buffer size, in pixels, used when
// streaming repeated color values. Any chunking that preserves byte
// order and total count is correct; this one keeps a full row per Tx at
// the default width.
const streamChunk = 128

// Opts is the configuration for the SSD1351 display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 128, must be ≤128)
	H int // Height (default: 96, must be ≤128)

	// Optional power switch pin. When nil the display cannot be powered
	// down; Halt then only issues the display-off command.
	PWR gpio.PinOut

	// Electrical level driven on PWR by Halt (default: gpio.Low).
	PowerDownLevel gpio.Level

	// Glyph source used by WriteString (default: glyph.Basic7x13()).
	Font glyph.Source
}

// Dev is the device handle for the SSD1351 display.
type Dev struct {
	// Communication
	c   conn.Conn   // SPI connection
	cs  gpio.PinOut // Chip select pin
	dc  gpio.PinOut // Data/Command pin
	rst gpio.PinOut // Reset pin
	pwr gpio.PinOut // Power switch pin (optional)

	// Power-down level for pwr
	pwrDown gpio.Level

	// Display geometry
	rect image.Rectangle

	// Text rendering
	font     glyph.Source
	col, row int          // Cursor position in character cells
	bg       rgb565.Color // Background color for glyph cells

	// State
	halted bool
}

// NewSPI creates a new SSD1351 device connected via SPI and initializes
// the display.
//
// The SPI port is configured for 20MHz, Mode0 (CPOL=0, CPHA=0), 8-bit
// transfers. The cs (Chip Select), dc (Data/Command) and rst (Reset)
// GPIO pins must be provided and configured as outputs; the driver owns
// them for its lifetime.
//
// opts can be nil to use defaults (128x96 display, no power pin).
func NewSPI(p spi.Port, cs, dc, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{W: DefaultWidth, H: DefaultHeight}
	}

	if opts.W <= 0 || opts.W > maxDim {
		return nil, fmt.Errorf("ssd1351: width must be between 1 and %d", maxDim)
	}
	if opts.H <= 0 || opts.H > maxDim {
		return nil, fmt.Errorf("ssd1351: height must be between 1 and %d", maxDim)
	}
	if cs == nil || dc == nil || rst == nil {
		return nil, errors.New("ssd1351: cs, dc and rst pins are required")
	}

	f := opts.Font
	if f == nil {
		f = glyph.Basic7x13()
	}

	// SSD1351 supports up to 20MHz SCLK.
	c, err := p.Connect(20*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	d := &Dev{
		c:       c,
		cs:      cs,
		dc:      dc,
		rst:     rst,
		pwr:     opts.PWR,
		pwrDown: opts.PowerDownLevel,
		rect:    image.Rect(0, 0, opts.W, opts.H),
		font:    f,
		bg:      rgb565.Black,
	}

	if err := d.Init(); err != nil {
		return nil, err
	}

	return d, nil
}

// Init resets the controller and sends the initialization command
// sequence, leaving the display on and ready for drawing calls.
//
// NewSPI calls Init; it only needs to be called again to restart the
// display after Halt or after a transport failure. The sequence is
// byte-identical on every call. Init does not touch the cursor,
// geometry or background color.
func (d *Dev) Init() error {
	// Power up and hardware reset. The controller needs the reset line
	// held low, then a settle delay after release.
	if d.pwr != nil {
		if err := d.pwr.Out(!d.pwrDown); err != nil {
			return fmt.Errorf("ssd1351: failed to drive PWR: %w", err)
		}
	}
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("ssd1351: failed to pull RST high: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("ssd1351: failed to pull RST low: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("ssd1351: failed to pull RST high: %w", err)
	}
	time.Sleep(100 * time.Millisecond)

	d.halted = false

	h := d.rect.Dy()
	// The start line must point at the first used COM row: 96-row
	// panels use the last 96 of the 128 COM lines.
	startLine := byte(0)
	if h == 96 {
		startLine = 96
	}

	// Ordered initialization stream. Several commands configure
	// parameters the later ones assume are already set; do not reorder.
	seq := []struct {
		cmd  byte
		args []byte
	}{
		{_COMMANDLOCK, []byte{0x12}},    // Unlock commands
		{_COMMANDLOCK, []byte{0xB1}},    // Unlock extended commands (A2,B1,B3,BB,BE,C1)
		{_DISPLAYOFF, nil},              // Sleep mode on
		{_CLOCKDIV, []byte{0xF1}},       // 7:4 oscillator frequency, 3:0 clock divider
		{_MUXRATIO, []byte{byte(h - 1)}},
		{_DISPLAYOFFSET, []byte{0x00}},
		{_STARTLINE, []byte{startLine}},
		{_SETREMAP, []byte{0x74}},       // 65k color, COM split, COM remap
		{_SETGPIO, []byte{0x00}},        // GPIO pins disabled
		{_FUNCTIONSELECT, []byte{0x01}}, // Internal VDD regulator
		{_PRECHARGE, []byte{0x32}},
		{_PRECHARGE2, []byte{0x01}},
		{_PRECHARGELEVEL, []byte{0x17}},
		{_VCOMH, []byte{0x05}},
		{_CONTRASTABC, []byte{0xC8, 0x80, 0xC8}},
		{_CONTRASTMASTER, []byte{0x0F}},
		{_SETVSL, []byte{0xA0, 0xB5, 0x55}},
		{_DISPLAYENHANCE, []byte{0xA4, 0x00, 0x00}},
		{_USELUT, nil}, // Linear grayscale LUT
		{_NORMALDISPLAY, nil},
	}
	for _, c := range seq {
		if err := d.WriteCommand(c.cmd); err != nil {
			return err
		}
		if len(c.args) > 0 {
			if err := d.WriteData(c.args); err != nil {
				return err
			}
		}
	}

	// Address window covering the full configured geometry.
	if err := d.SetWindow(0, 0, d.rect.Dx(), h); err != nil {
		return err
	}

	return d.WriteCommand(_DISPLAYON)
}

// Halt turns the display off and, when a power pin is connected, drives
// it to the configured power-down level.
//
// Halt does not clear the cursor, geometry or background color. After
// calling Halt, drawing calls fail until the device is re-initialized
// with Init.
func (d *Dev) Halt() error {
	if err := d.WriteCommand(_DISPLAYOFF); err != nil {
		return err
	}
	d.halted = true
	if d.pwr != nil {
		if err := d.pwr.Out(d.pwrDown); err != nil {
			return fmt.Errorf("ssd1351: failed to drive PWR: %w", err)
		}
	}
	return nil
}

// WriteCommand sends a single command byte.
//
// The transaction is framed by the chip-select pin with the
// data/command pin low; command parameters must follow as a separate
// WriteData call.
func (d *Dev) WriteCommand(cmd byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("ssd1351: failed to assert CS: %w", err)
	}
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("ssd1351: failed to drive DC: %w", err)
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("ssd1351: failed to drive DC: %w", err)
	}
	return d.cs.Out(gpio.High)
}

// WriteData sends a burst of data bytes as one chip-select framed
// transaction with the data/command pin high.
func (d *Dev) WriteData(data []byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("ssd1351: failed to assert CS: %w", err)
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("ssd1351: failed to drive DC: %w", err)
	}
	if err := d.c.Tx(data, nil); err != nil {
		return err
	}
	return d.cs.Out(gpio.High)
}

// SetDisplaySize changes the configured display geometry.
//
// The geometry defaults to 128x96 and is not expected to change during
// normal operation. Call Init afterwards so the mux ratio and start
// line match the new geometry.
func (d *Dev) SetDisplaySize(w, h int) error {
	if w <= 0 || w > maxDim || h <= 0 || h > maxDim {
		return fmt.Errorf("ssd1351: invalid display size %dx%d", w, h)
	}
	d.rect = image.Rect(0, 0, w, h)
	return nil
}

// SetWindow sets the controller's address window to the rectangle at
// (x, y) of size w x h and primes it for an immediately-following data
// burst.
//
// The window is not persisted by the controller across other commands;
// every drawing operation re-establishes it before streaming pixels.
func (d *Dev) SetWindow(x, y, w, h int) error {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > d.rect.Dx() || y+h > d.rect.Dy() {
		return fmt.Errorf("ssd1351: window (%d,%d)+%dx%d out of %dx%d bounds",
			x, y, w, h, d.rect.Dx(), d.rect.Dy())
	}

	if err := d.WriteCommand(_SETCOLUMN); err != nil {
		return err
	}
	if err := d.WriteData([]byte{byte(x), byte(x + w - 1)}); err != nil {
		return err
	}
	if err := d.WriteCommand(_SETROW); err != nil {
		return err
	}
	if err := d.WriteData([]byte{byte(y), byte(y + h - 1)}); err != nil {
		return err
	}
	return d.WriteCommand(_WRITERAM)
}

// FillScreen fills the whole display with c and records c as the
// background color used by WriteString for unset glyph pixels.
func (d *Dev) FillScreen(c rgb565.Color) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}
	w, h := d.rect.Dx(), d.rect.Dy()
	if err := d.SetWindow(0, 0, w, h); err != nil {
		return err
	}
	if err := d.streamColor(c, w*h); err != nil {
		return err
	}
	d.bg = c
	return nil
}

// streamColor streams n repetitions of c's 2-byte wire representation
// through a bounded chunk buffer.
func (d *Dev) streamColor(c rgb565.Color, n int) error {
	hi, lo := c.Bytes()
	chunk := streamChunk
	if n < chunk {
		chunk = n
	}
	buf := make([]byte, chunk*2)
	for i := 0; i < chunk; i++ {
		buf[2*i] = hi
		buf[2*i+1] = lo
	}
	for n > 0 {
		m := chunk
		if n < m {
			m = n
		}
		if err := d.WriteData(buf[:m*2]); err != nil {
			return err
		}
		n -= m
	}
	return nil
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write writes raw pixel data to the display in RGB 5-6-5 wire format,
// 2 bytes per pixel, high byte first. The data must be exactly
// d.rect.Dx() * d.rect.Dy() * 2 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errors.New("ssd1351: halted")
	}
	if len(pixels) != d.rect.Dx()*d.rect.Dy()*2 {
		return 0, errors.New("ssd1351: invalid buffer size")
	}
	if err := d.SetWindow(0, 0, d.rect.Dx(), d.rect.Dy()); err != nil {
		return 0, err
	}
	if err := d.WriteData(pixels); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// Draw draws an image onto the display.
//
// It draws synchronously; once this function returns, the display is
// updated. The dst rectangle specifies the destination region on the
// display, sp the origin within src.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	// Fast path: a full-frame rgb565.Image is already in wire order.
	if img, ok := src.(*rgb565.Image); ok {
		zeroPoint := image.Point{}
		if dst == d.rect && sp == zeroPoint && img.Rect == d.rect {
			_, err := d.Write(img.Pix)
			return err
		}
	}

	if err := d.SetWindow(dst.Min.X, dst.Min.Y, dst.Dx(), dst.Dy()); err != nil {
		return err
	}

	// Convert and stream one row at a time.
	row := make([]byte, dst.Dx()*2)
	for y := 0; y < dst.Dy(); y++ {
		for x := 0; x < dst.Dx(); x++ {
			c := rgb565.Model.Convert(src.At(sp.X+x, sp.Y+y)).(rgb565.Color)
			row[2*x], row[2*x+1] = c.Bytes()
		}
		if err := d.WriteData(row); err != nil {
			return err
		}
	}
	return nil
}

// SetContrast sets the master contrast (0-15). Values above 15 are
// clipped by the controller.
func (d *Dev) SetContrast(contrast byte) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}
	if err := d.WriteCommand(_CONTRASTMASTER); err != nil {
		return err
	}
	return d.WriteData([]byte{contrast})
}

// Invert inverts the display colors.
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}
	mode := byte(_NORMALDISPLAY)
	if invert {
		mode = _INVERTDISPLAY
	}
	return d.WriteCommand(mode)
}

// ScrollSpeed defines the horizontal scroll interval.
type ScrollSpeed byte

const (
	SpeedTest    ScrollSpeed = 0x00 // Test mode
	SpeedNormal  ScrollSpeed = 0x01
	SpeedSlow    ScrollSpeed = 0x02
	SpeedSlowest ScrollSpeed = 0x03
)

// ScrollHorizontal starts horizontal scrolling of the row band
// [startRow, endRow]. offset is the number of columns shifted per
// scroll step; negative scrolls left.
func (d *Dev) ScrollHorizontal(startRow, endRow byte, speed ScrollSpeed, offset int8) error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}
	if int(startRow) >= d.rect.Dy() || int(endRow) >= d.rect.Dy() || startRow > endRow {
		return errors.New("ssd1351: scroll row out of range")
	}

	if err := d.WriteCommand(_HORIZSCROLL); err != nil {
		return err
	}
	err := d.WriteData([]byte{
		byte(offset),
		startRow,
		endRow - startRow + 1,
		0x00, // Reserved
		byte(speed),
	})
	if err != nil {
		return err
	}
	return d.WriteCommand(_STARTSCROLL)
}

// StopScroll stops scrolling and resets the display to normal
// operation.
func (d *Dev) StopScroll() error {
	if d.halted {
		return errors.New("ssd1351: halted")
	}
	return d.WriteCommand(_STOPSCROLL)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ssd1351.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

var _ display.Drawer = &Dev{}
