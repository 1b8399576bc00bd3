// Package hardware drives the physical SSD1322 OLED panel over SPI.
package hardware

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/render"
)

// TargetName identifies the hardware target in logs.
const TargetName = "hardware"

// SSD1322 command set, per the Solomon Systech datasheet.
const (
	cmdSetColumn         = 0x15
	cmdWriteRAM          = 0x5C
	cmdSetRow            = 0x75
	cmdSetRemap          = 0xA0
	cmdStartLine         = 0xA1
	cmdDisplayOffset     = 0xA2
	cmdNormalDisplay     = 0xA6
	cmdFunctionSelect    = 0xAB
	cmdDisplayOff        = 0xAE
	cmdDisplayOn         = 0xAF
	cmdPhaseLength       = 0xB1
	cmdClockDivider      = 0xB3
	cmdDisplayEnhanceA   = 0xB4
	cmdSetGPIO           = 0xB5
	cmdSecondPrecharge   = 0xB6
	cmdDefaultGreyscale  = 0xB9
	cmdPrechargeVoltage  = 0xBB
	cmdVCOMH             = 0xBE
	cmdContrast          = 0xC1
	cmdMasterContrast    = 0xC7
	cmdMuxRatio          = 0xCA
	cmdDisplayEnhanceB   = 0xD1
	cmdCommandLock       = 0xFD
	columnOffset         = 0x1C // panel RAM is wider than 256px; glass starts here
	maxTransferChunkSize = 4096 // linux spidev transfer limit
)

// Config holds configuration for the hardware target.
type Config struct {
	// SPIDevice is the spireg port name; empty selects the first bus.
	SPIDevice string

	// DCPin and ResetPin are gpioreg names for the data/command and reset
	// lines.
	DCPin    string
	ResetPin string

	// Layout is the shared layout policy.
	Layout render.LayoutOptions

	// Logger for device operations.
	Logger zerolog.Logger
}

// Display is the SSD1322 render target. Initialize is expected to fail on
// machines without the panel; the selector treats that as fallback.
type Display struct {
	cfg    Config
	port   spi.PortCloser
	conn   spi.Conn
	dc     gpio.PinOut
	rst    gpio.PinOut
	logger zerolog.Logger
}

// New creates an uninitialized hardware target.
func New(cfg Config) *Display {
	return &Display{cfg: cfg, logger: cfg.Logger}
}

// Name returns the target name.
func (d *Display) Name() string {
	return TargetName
}

// Initialize opens the SPI bus and GPIO lines, resets the panel, and runs
// the SSD1322 power-up sequence. Errors are classified so the selector can
// report why the panel is absent.
func (d *Display) Initialize() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: host init: %v", render.ErrDeviceAbsent, err)
	}

	port, err := spireg.Open(d.cfg.SPIDevice)
	if err != nil {
		return classifyOpenError(err)
	}

	conn, err := port.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return fmt.Errorf("%w: spi connect: %v", render.ErrBusError, err)
	}

	dc := gpioreg.ByName(d.cfg.DCPin)
	if dc == nil {
		port.Close()
		return fmt.Errorf("%w: gpio pin %s not found", render.ErrDeviceAbsent, d.cfg.DCPin)
	}
	rst := gpioreg.ByName(d.cfg.ResetPin)
	if rst == nil {
		port.Close()
		return fmt.Errorf("%w: gpio pin %s not found", render.ErrDeviceAbsent, d.cfg.ResetPin)
	}

	d.port = port
	d.conn = conn
	d.dc = dc
	d.rst = rst

	if err := d.reset(); err != nil {
		d.close()
		return fmt.Errorf("%w: panel reset: %v", render.ErrBusError, err)
	}
	if err := d.powerUp(); err != nil {
		d.close()
		return fmt.Errorf("%w: panel init: %v", render.ErrBusError, err)
	}

	d.logger.Info().
		Str("dc_pin", d.cfg.DCPin).
		Str("reset_pin", d.cfg.ResetPin).
		Msg("ssd1322 panel initialized")
	return nil
}

// Render rasterizes the view model and pushes the full frame to the panel.
// The frame buffer is rebuilt from scratch each cycle, so no pixels from
// the previous frame survive.
func (d *Display) Render(vm board.ViewModel) error {
	layout := render.BuildLayout(vm, d.cfg.Layout)
	img, clipped := render.DrawFrame(layout)
	if clipped > 0 {
		d.logger.Debug().Int("clipped_lines", clipped).Msg("frame content clipped")
	}
	if err := d.writeFrame(img); err != nil {
		return fmt.Errorf("%w: %v", render.ErrDeviceWrite, err)
	}
	return nil
}

// Shutdown blanks the panel and releases the SPI bus.
func (d *Display) Shutdown() {
	if d.conn != nil {
		if err := d.command(cmdDisplayOff); err != nil {
			d.logger.Warn().Err(err).Msg("failed to blank panel on shutdown")
		}
	}
	d.close()
}

func (d *Display) close() {
	if d.port != nil {
		d.port.Close()
		d.port = nil
		d.conn = nil
	}
}

func (d *Display) reset() error {
	if err := d.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// powerUp runs the SSD1322 init sequence for a 256x64 panel.
func (d *Display) powerUp() error {
	seq := []struct {
		cmd  byte
		args []byte
	}{
		{cmdCommandLock, []byte{0x12}},
		{cmdDisplayOff, nil},
		{cmdClockDivider, []byte{0x91}},
		{cmdMuxRatio, []byte{0x3F}},
		{cmdDisplayOffset, []byte{0x00}},
		{cmdStartLine, []byte{0x00}},
		{cmdSetRemap, []byte{0x14, 0x11}},
		{cmdSetGPIO, []byte{0x00}},
		{cmdFunctionSelect, []byte{0x01}},
		{cmdDisplayEnhanceA, []byte{0xA0, 0xFD}},
		{cmdContrast, []byte{0x9F}},
		{cmdMasterContrast, []byte{0x0F}},
		{cmdDefaultGreyscale, nil},
		{cmdPhaseLength, []byte{0xE2}},
		{cmdDisplayEnhanceB, []byte{0x82, 0x20}},
		{cmdPrechargeVoltage, []byte{0x1F}},
		{cmdSecondPrecharge, []byte{0x08}},
		{cmdVCOMH, []byte{0x07}},
		{cmdNormalDisplay, nil},
		{cmdDisplayOn, nil},
	}

	for _, step := range seq {
		if err := d.command(step.cmd, step.args...); err != nil {
			return err
		}
	}
	return nil
}

// writeFrame packs the 8-bit grayscale canvas into the panel's 4-bit
// format (two pixels per byte) and streams it into display RAM.
func (d *Display) writeFrame(img *image.Gray) error {
	cols := render.CanvasWidth / 4 // RAM columns hold 4 pixels each
	if err := d.command(cmdSetColumn, columnOffset, columnOffset+byte(cols)-1); err != nil {
		return err
	}
	if err := d.command(cmdSetRow, 0x00, render.CanvasHeight-1); err != nil {
		return err
	}
	if err := d.command(cmdWriteRAM); err != nil {
		return err
	}

	buf := make([]byte, render.CanvasWidth*render.CanvasHeight/2)
	for y := 0; y < render.CanvasHeight; y++ {
		for x := 0; x < render.CanvasWidth; x += 2 {
			hi := img.GrayAt(x, y).Y >> 4
			lo := img.GrayAt(x+1, y).Y >> 4
			buf[(y*render.CanvasWidth+x)/2] = hi<<4 | lo
		}
	}
	return d.data(buf)
}

func (d *Display) command(cmd byte, args ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return d.data(args)
}

func (d *Display) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		chunk := b
		if len(chunk) > maxTransferChunkSize {
			chunk = chunk[:maxTransferChunkSize]
		}
		if err := d.conn.Tx(chunk, nil); err != nil {
			return err
		}
		b = b[len(chunk):]
	}
	return nil
}

func classifyOpenError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: spi open: %v", render.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: spi open: %v", render.ErrDeviceAbsent, err)
}
