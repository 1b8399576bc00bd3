// Package render defines the display target abstraction, the shared board
// layout policy, and the frame rasterizer used by the pixel targets.
package render

import (
	"errors"

	"github.com/fluted/departureboard/internal/board"
)

// Canvas dimensions shared by every target. The physical panel is a 256x64
// grayscale OLED; the emulator and the web PNG artifact match it.
const (
	CanvasWidth  = 256
	CanvasHeight = 64
)

// Initialization errors. Init failures drive selector fallback and are
// never fatal while another candidate remains.
var (
	ErrDeviceAbsent     = errors.New("display device absent")
	ErrPermissionDenied = errors.New("display device permission denied")
	ErrBusError         = errors.New("display bus error")
)

// ErrDeviceWrite is the render-time failure: the frame was built but could
// not be pushed to the device. Overflowing content is not an error; the
// rasterizer clips it.
var ErrDeviceWrite = errors.New("display write failed")

// Target is an abstract display surface. A target is initialized once,
// rendered to for the process lifetime, and shut down exactly once.
type Target interface {
	// Initialize acquires the underlying device or canvas. A failed
	// Initialize leaves the target unusable; it is not retried.
	Initialize() error

	// Render draws the view model, fully overwriting the previous frame.
	Render(vm board.ViewModel) error

	// Shutdown releases device or canvas resources.
	Shutdown()

	// Name identifies the target in logs.
	Name() string
}

// State tracks a target through its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
