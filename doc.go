// Package ssd1351 controls a SSD1351 color OLED display via SPI.
//
// The SSD1351 is a 16-bit color OLED controller supporting up to 128×128
// pixels. This driver implements the display.Drawer interface from periph.io
// and adds a cursor-addressed text renderer.
//
// # Display Characteristics
//
// - 16-bit color in RGB 5-6-5 format (65k colors)
// - Common resolutions: 128×96 (default) and 128×128
// - Hardware scrolling support (horizontal only)
// - Adjustable master contrast
// - Display inversion
//
// # Hardware Connection
//
// Connect the SSD1351 display to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V (or a GPIO-switched supply, see below)
//	SCL/CLK     → SPI Clock (SCLK)
//	SDA/MOSI    → SPI Data (MOSI)
//	CS          → GPIO (driven by this driver)
//	DC          → GPIO (any available pin)
//	RES         → GPIO (hardware reset)
//
// The driver owns the CS, DC and RES pins for its lifetime and frames every
// bus transaction with them: the controller is a single shared bus target
// with no addressing of its own, so overlapping transactions are forbidden.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/ssd1351"
//		"periph.io/x/devices/v3/ssd1351/rgb565"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//
//		// Open SPI bus
//		spiBus, _ := spireg.Open("")
//
//		// Control pins
//		cs := gpioreg.ByName("GPIO8")
//		dc := gpioreg.ByName("GPIO25")
//		rst := gpioreg.ByName("GPIO24")
//
//		// Create device (128x96 by default)
//		dev, _ := ssd1351.NewSPI(spiBus, cs, dc, rst, nil)
//		defer dev.Halt()
//
//		// Fill the screen and write some text
//		dev.FillScreen(rgb565.Navy)
//		dev.SetCursor(0, 0)
//		dev.WriteString("Hello!", rgb565.Yellow)
//	}
//
// # Power Switch Pin (Optional)
//
// If the display supply runs through a GPIO-switched rail, provide the pin
// in Opts:
//
//	dev, _ := ssd1351.NewSPI(spiBus, cs, dc, rst, &ssd1351.Opts{
//		W:   128,
//		H:   96,
//		PWR: gpioreg.ByName("GPIO23"),
//	})
//
// Halt then removes power from the display after turning it off; Init
// restores power and replays the full initialization sequence. Without a
// power pin, the display-off command is the only power-saving action Halt
// can take.
//
// # Text Rendering
//
// WriteString renders strings at a character-cell cursor using a fixed-cell
// glyph source (basicfont.Face7x13 from golang.org/x/image by default, 7×13
// pixels per cell). Newlines and the right display edge wrap the cursor;
// running past the bottom row fails, there is no automatic scrolling.
//
// # Drawing
//
// The driver supports raw full-frame writes in wire format (Write), the
// display.Drawer interface (Draw) and solid fills (FillScreen). All
// transfers are synchronous and complete before the call returns. The
// rgb565.Image type holds pixels in wire order for the Draw fast path.
//
// # Datasheet
//
// https://newhavendisplay.com/content/app_notes/SSD1351.pdf
package ssd1351
