// Package emulator renders board frames to a PNG file for development
// machines without the physical panel.
package emulator

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/render"
)

// TargetName identifies the emulator target in logs.
const TargetName = "emulator"

// Config holds configuration for the emulator target.
type Config struct {
	// FramePath is where the current frame PNG is written.
	FramePath string

	// Layout is the shared layout policy.
	Layout render.LayoutOptions

	// Logger for target operations.
	Logger zerolog.Logger
}

// Emulator writes each frame to a PNG file, replacing it atomically so a
// viewer never reads a torn frame.
type Emulator struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an uninitialized emulator target.
func New(cfg Config) *Emulator {
	return &Emulator{cfg: cfg, logger: cfg.Logger}
}

// Name returns the target name.
func (e *Emulator) Name() string {
	return TargetName
}

// Initialize verifies the frame path is writable by writing an empty frame.
// Failure reporting is idempotent: a target that cannot write its first
// frame never pretends to be ready.
func (e *Emulator) Initialize() error {
	if e.cfg.FramePath == "" {
		return fmt.Errorf("%w: no frame path configured", render.ErrDeviceAbsent)
	}

	blank, _ := render.DrawFrame(render.Layout{})
	if err := e.writePNG(blank); err != nil {
		return fmt.Errorf("%w: %v", render.ErrPermissionDenied, err)
	}

	e.logger.Info().Str("frame_path", e.cfg.FramePath).Msg("emulator frame file ready")
	return nil
}

// Render rasterizes the view model and replaces the frame file.
func (e *Emulator) Render(vm board.ViewModel) error {
	layout := render.BuildLayout(vm, e.cfg.Layout)
	img, clipped := render.DrawFrame(layout)
	if clipped > 0 {
		e.logger.Debug().Int("clipped_lines", clipped).Msg("frame content clipped")
	}
	if err := e.writePNG(img); err != nil {
		return fmt.Errorf("%w: %v", render.ErrDeviceWrite, err)
	}
	return nil
}

// Shutdown removes the frame file so a stale board is not mistaken for a
// live one.
func (e *Emulator) Shutdown() {
	if err := os.Remove(e.cfg.FramePath); err != nil && !os.IsNotExist(err) {
		e.logger.Warn().Err(err).Msg("failed to remove emulator frame file")
	}
}

// writePNG writes to a temp file in the same directory and renames it over
// the target path.
func (e *Emulator) writePNG(img *image.Gray) error {
	dir := filepath.Dir(e.cfg.FramePath)
	tmp, err := os.CreateTemp(dir, ".boardd-frame-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), e.cfg.FramePath)
}
