package ssd1351

import (
	"bytes"
	"errors"
	"image"
	"reflect"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"periph.io/x/devices/v3/ssd1351/glyph"
	"periph.io/x/devices/v3/ssd1351/rgb565"
)

// op is one chip-select framed transfer captured by the recorder.
type op struct {
	cmd  bool // true when sent with DC low
	data []byte
}

// record captures bus transfers together with the control line state at
// the time of each transfer.
type record struct {
	cs, dc *gpiotest.Pin
	ops    []op
}

func (r *record) String() string {
	return "record"
}

func (r *record) Duplex() conn.Duplex {
	return conn.Half
}

func (r *record) Tx(w, rx []byte) error {
	if r.cs.L != gpio.Low {
		return errors.New("transfer outside chip-select")
	}
	r.ops = append(r.ops, op{
		cmd:  r.dc.L == gpio.Low,
		data: append([]byte(nil), w...),
	})
	return nil
}

func (r *record) reset() {
	r.ops = nil
}

// commands returns the command opcodes in capture order.
func (r *record) commands() []byte {
	var cmds []byte
	for _, o := range r.ops {
		if o.cmd {
			cmds = append(cmds, o.data...)
		}
	}
	return cmds
}

// dataAfterWriteRAM concatenates all data bytes following the last
// write-RAM command.
func (r *record) dataAfterWriteRAM() []byte {
	start := -1
	for i, o := range r.ops {
		if o.cmd && o.data[0] == _WRITERAM {
			start = i
		}
	}
	if start < 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, o := range r.ops[start+1:] {
		if !o.cmd {
			buf.Write(o.data)
		}
	}
	return buf.Bytes()
}

func newTestDev(w, h int, withPWR bool) (*Dev, *record) {
	cs := &gpiotest.Pin{N: "CS", L: gpio.High}
	dc := &gpiotest.Pin{N: "DC", L: gpio.High}
	rst := &gpiotest.Pin{N: "RST"}
	rec := &record{cs: cs, dc: dc}
	d := &Dev{
		c:    rec,
		cs:   cs,
		dc:   dc,
		rst:  rst,
		rect: image.Rect(0, 0, w, h),
		font: glyph.Basic7x13(),
		bg:   rgb565.Black,
	}
	if withPWR {
		d.pwr = &gpiotest.Pin{N: "PWR"}
		d.pwrDown = gpio.Low
	}
	return d, rec
}

func TestInitSequence(t *testing.T) {
	d, rec := newTestDev(128, 96, false)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	cmds := rec.commands()
	if len(cmds) == 0 {
		t.Fatal("no commands emitted")
	}

	// Command lock unlock comes first, display-on last.
	if cmds[0] != _COMMANDLOCK || cmds[1] != _COMMANDLOCK {
		t.Errorf("command stream must start with the command-lock sequence, got % X", cmds[:2])
	}
	if cmds[2] != _DISPLAYOFF {
		t.Errorf("cmds[2] = 0x%02X, want display-off", cmds[2])
	}
	if cmds[len(cmds)-1] != _DISPLAYON {
		t.Errorf("last command = 0x%02X, want display-on", cmds[len(cmds)-1])
	}

	// Display-on must come after the full configuration stream.
	for i, c := range cmds[:len(cmds)-1] {
		if c == _DISPLAYON {
			t.Errorf("display-on issued early at index %d", i)
		}
	}

	// The mux ratio parameter must match the configured height.
	for i, o := range rec.ops {
		if o.cmd && o.data[0] == _MUXRATIO {
			if arg := rec.ops[i+1]; arg.cmd || arg.data[0] != 95 {
				t.Errorf("mux ratio argument = %v, want data byte 95", arg)
			}
		}
	}
}

func TestInitRestartIdentical(t *testing.T) {
	d, rec := newTestDev(128, 96, false)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	first := rec.ops

	rec.reset()
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	rec.reset()
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, rec.ops) {
		t.Error("restarted init did not reproduce the identical command sequence")
	}
}

func TestInitPowersUp(t *testing.T) {
	d, _ := newTestDev(128, 96, true)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if d.pwr.(*gpiotest.Pin).L != gpio.High {
		t.Error("Init did not drive PWR to the active level")
	}
}

func TestHaltWithPowerPin(t *testing.T) {
	d, rec := newTestDev(128, 96, true)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	rec.reset()

	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if got := rec.commands(); len(got) != 1 || got[0] != _DISPLAYOFF {
		t.Errorf("Halt commands = % X, want display-off only", got)
	}
	if d.pwr.(*gpiotest.Pin).L != gpio.Low {
		t.Error("Halt did not drive PWR to the power-down level")
	}
}

func TestHaltWithoutPowerPin(t *testing.T) {
	d, rec := newTestDev(128, 96, false)
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if got := rec.commands(); len(got) != 1 || got[0] != _DISPLAYOFF {
		t.Errorf("Halt commands = % X, want display-off only", got)
	}
	if len(rec.ops) != 1 {
		t.Errorf("Halt emitted %d transfers, want 1", len(rec.ops))
	}
}

func TestSetWindow(t *testing.T) {
	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"full screen", 0, 0, 128, 96},
		{"origin cell", 0, 0, 7, 13},
		{"interior", 3, 4, 10, 20},
		{"bottom right pixel", 127, 95, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec := newTestDev(128, 96, false)
			if err := d.SetWindow(tt.x, tt.y, tt.w, tt.h); err != nil {
				t.Fatal(err)
			}

			want := []op{
				{true, []byte{_SETCOLUMN}},
				{false, []byte{byte(tt.x), byte(tt.x + tt.w - 1)}},
				{true, []byte{_SETROW}},
				{false, []byte{byte(tt.y), byte(tt.y + tt.h - 1)}},
				{true, []byte{_WRITERAM}},
			}
			if !reflect.DeepEqual(rec.ops, want) {
				t.Errorf("ops = %v, want %v", rec.ops, want)
			}
		})
	}
}

func TestSetWindowOutOfRange(t *testing.T) {
	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"negative x", -1, 0, 4, 4},
		{"zero width", 0, 0, 0, 4},
		{"past right edge", 120, 0, 10, 4},
		{"past bottom edge", 0, 90, 4, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec := newTestDev(128, 96, false)
			if err := d.SetWindow(tt.x, tt.y, tt.w, tt.h); err == nil {
				t.Error("expected error")
			}
			if len(rec.ops) != 0 {
				t.Errorf("out-of-range window emitted %d transfers", len(rec.ops))
			}
		})
	}
}

func TestFillScreen(t *testing.T) {
	d, rec := newTestDev(16, 8, false)
	if err := d.FillScreen(rgb565.Red); err != nil {
		t.Fatal(err)
	}

	// Window must cover (0,0)-(15,7).
	if got, want := rec.ops[1].data, []byte{0, 15}; !bytes.Equal(got, want) {
		t.Errorf("column range = %v, want %v", got, want)
	}
	if got, want := rec.ops[3].data, []byte{0, 7}; !bytes.Equal(got, want) {
		t.Errorf("row range = %v, want %v", got, want)
	}

	// Exactly width*height color repetitions, high byte first.
	data := rec.dataAfterWriteRAM()
	if len(data) != 16*8*2 {
		t.Fatalf("streamed %d bytes, want %d", len(data), 16*8*2)
	}
	for i := 0; i < len(data); i += 2 {
		if data[i] != 0xF8 || data[i+1] != 0x00 {
			t.Fatalf("pixel %d = [0x%02X 0x%02X], want [0xF8 0x00]", i/2, data[i], data[i+1])
		}
	}

	// FillScreen records the background color.
	if d.bg != rgb565.Red {
		t.Errorf("background = 0x%04X, want red", uint16(d.bg))
	}
}

func TestFillScreenChunking(t *testing.T) {
	// A display larger than the chunk buffer still streams the exact
	// pixel count.
	d, rec := newTestDev(128, 96, false)
	if err := d.FillScreen(rgb565.White); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.dataAfterWriteRAM()); got != 128*96*2 {
		t.Errorf("streamed %d bytes, want %d", got, 128*96*2)
	}
}

func TestWriteCommandFraming(t *testing.T) {
	d, rec := newTestDev(128, 96, false)

	if err := d.WriteCommand(_NORMALDISPLAY); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteData([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	want := []op{
		{true, []byte{_NORMALDISPLAY}},
		{false, []byte{1, 2, 3}},
	}
	if !reflect.DeepEqual(rec.ops, want) {
		t.Errorf("ops = %v, want %v", rec.ops, want)
	}

	// Chip select must be released and DC back in data mode after each
	// transaction.
	if rec.cs.L != gpio.High {
		t.Error("CS left asserted after transaction")
	}
	if rec.dc.L != gpio.High {
		t.Error("DC not restored to data mode after command")
	}
}

func TestWriteInvalidBufferSize(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	_, err := d.Write(make([]byte, 100))
	if err == nil {
		t.Fatal("Write should fail with wrong buffer size")
	}
	if err.Error() != "ssd1351: invalid buffer size" {
		t.Errorf("Write error = %v, want 'ssd1351: invalid buffer size'", err)
	}
}

func TestWriteFullFrame(t *testing.T) {
	d, rec := newTestDev(8, 4, false)
	pixels := make([]byte, 8*4*2)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	n, err := d.Write(pixels)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(pixels) {
		t.Errorf("Write returned %d, want %d", n, len(pixels))
	}
	if got := rec.dataAfterWriteRAM(); !bytes.Equal(got, pixels) {
		t.Error("streamed bytes do not match the input buffer")
	}
}

func TestDrawFastPath(t *testing.T) {
	d, rec := newTestDev(8, 4, false)
	img := rgb565.New(d.Bounds())
	img.SetRGB565(2, 1, rgb565.Green)

	if err := d.Draw(d.Bounds(), img, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if got := rec.dataAfterWriteRAM(); !bytes.Equal(got, img.Pix) {
		t.Error("fast path did not stream the image pixels verbatim")
	}
}

func TestDrawConverts(t *testing.T) {
	d, rec := newTestDev(8, 4, false)
	src := image.NewUniform(rgb565.Blue)

	if err := d.Draw(image.Rect(1, 1, 3, 3), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if got, want := rec.ops[1].data, []byte{1, 2}; !bytes.Equal(got, want) {
		t.Errorf("column range = %v, want %v", got, want)
	}
	data := rec.dataAfterWriteRAM()
	if len(data) != 2*2*2 {
		t.Fatalf("streamed %d bytes, want 8", len(data))
	}
	for i := 0; i < len(data); i += 2 {
		if rgb565.FromBytes(data[i], data[i+1]) != rgb565.Blue {
			t.Fatalf("pixel %d is not blue: % X", i/2, data[i:i+2])
		}
	}
}

func TestHaltedOperationsFail(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	d.halted = true

	if err := d.FillScreen(rgb565.Black); err == nil {
		t.Error("FillScreen should fail when halted")
	}
	if _, err := d.Write(make([]byte, 128*96*2)); err == nil {
		t.Error("Write should fail when halted")
	}
	if err := d.Draw(d.Bounds(), image.NewRGBA(d.Bounds()), image.Point{}); err == nil {
		t.Error("Draw should fail when halted")
	}
	if err := d.WriteString("x", rgb565.White); err == nil {
		t.Error("WriteString should fail when halted")
	}
	if err := d.SetContrast(10); err == nil {
		t.Error("SetContrast should fail when halted")
	}
	if err := d.Invert(true); err == nil {
		t.Error("Invert should fail when halted")
	}
	if err := d.ScrollHorizontal(0, 10, SpeedNormal, 1); err == nil {
		t.Error("ScrollHorizontal should fail when halted")
	}
	if err := d.StopScroll(); err == nil {
		t.Error("StopScroll should fail when halted")
	}
}

func TestScrollCommands(t *testing.T) {
	d, rec := newTestDev(128, 96, false)
	if err := d.ScrollHorizontal(8, 23, SpeedNormal, 1); err != nil {
		t.Fatal(err)
	}

	want := []op{
		{true, []byte{_HORIZSCROLL}},
		{false, []byte{1, 8, 16, 0, byte(SpeedNormal)}},
		{true, []byte{_STARTSCROLL}},
	}
	if !reflect.DeepEqual(rec.ops, want) {
		t.Errorf("ops = %v, want %v", rec.ops, want)
	}

	rec.reset()
	if err := d.StopScroll(); err != nil {
		t.Fatal(err)
	}
	if got := rec.commands(); len(got) != 1 || got[0] != _STOPSCROLL {
		t.Errorf("StopScroll commands = % X", got)
	}
}

func TestScrollRowOutOfRange(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	if err := d.ScrollHorizontal(0, 96, SpeedNormal, 1); err == nil {
		t.Error("expected error for end row past the display")
	}
	if err := d.ScrollHorizontal(20, 10, SpeedNormal, 1); err == nil {
		t.Error("expected error for inverted row range")
	}
}

func TestSetDisplaySize(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	if err := d.SetDisplaySize(128, 128); err != nil {
		t.Fatal(err)
	}
	if got, want := d.Bounds(), image.Rect(0, 0, 128, 128); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
	if err := d.SetDisplaySize(200, 96); err == nil {
		t.Error("expected error for width > 128")
	}
	if err := d.SetDisplaySize(128, 0); err == nil {
		t.Error("expected error for zero height")
	}
}

func TestDevString(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	if got, want := d.String(), "ssd1351.Dev{128x96}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDevColorModel(t *testing.T) {
	d, _ := newTestDev(128, 96, false)
	if d.ColorModel() != rgb565.Model {
		t.Error("ColorModel() did not return rgb565.Model")
	}
}
