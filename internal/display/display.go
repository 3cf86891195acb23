// Package display models scan-buffer submission and the multisample resolve
// needed before a color buffer can be shown on a second output.
package display

import "fmt"

// ScanTarget is a bitmask of outputs a color buffer is copied to
type ScanTarget uint32

const (
	TargetTV  ScanTarget = 0x1
	TargetDRC ScanTarget = 0x4 // GamePad screen
)

// String returns a readable list of outputs
func (t ScanTarget) String() string {
	switch t {
	case TargetTV:
		return "TV"
	case TargetDRC:
		return "DRC"
	case TargetTV | TargetDRC:
		return "TV|DRC"
	default:
		return fmt.Sprintf("ScanTarget(0x%X)", uint32(t))
	}
}

// AAMode is the multisample mode of a surface
type AAMode int

const (
	AA1X AAMode = iota
	AA2X
	AA4X
	AA8X
)

// Samples returns the number of samples per pixel
func (m AAMode) Samples() int {
	return 1 << m
}

// grid returns the horizontal and vertical sample layout
func (m AAMode) grid() (int, int) {
	switch m {
	case AA2X:
		return 2, 1
	case AA4X:
		return 2, 2
	case AA8X:
		return 4, 2
	default:
		return 1, 1
	}
}

// Surface is an RGBA8 image with its memory layout
type Surface struct {
	Width  int
	Height int
	AA     AAMode

	// Pitch is the row length in samples
	Pitch     int
	Image     []byte
	ImageSize int
	Alignment int
}

// ColorBuffer is a render target handed to the scan-buffer copy
type ColorBuffer struct {
	Surface Surface
}

// SubmitFunc copies a color buffer to the given outputs
type SubmitFunc func(cb *ColorBuffer, target ScanTarget)

// Resolver computes surface layouts and resolves multisampled buffers
type Resolver interface {
	// CalcSurfaceSizeAndAlignment fills Pitch, ImageSize and Alignment
	CalcSurfaceSizeAndAlignment(s *Surface)

	// ResolveAA writes the single-sample version of src into dst
	ResolveAA(src *ColorBuffer, dst *Surface) error
}

// Allocator provides memory usable as a surface image
type Allocator interface {
	Alloc(size, alignment int) ([]byte, error)
	Free(b []byte)
}
