package display

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

const surfaceAlignment = 256

// SoftwareResolver resolves multisampled surfaces on the CPU. Samples are
// stored as a supersampled RGBA image, so resolving is a downscale.
type SoftwareResolver struct {
	// Interpolator defaults to draw.ApproxBiLinear
	Interpolator draw.Interpolator
}

// CalcSurfaceSizeAndAlignment implements Resolver
func (r *SoftwareResolver) CalcSurfaceSizeAndAlignment(s *Surface) {
	sx, sy := s.AA.grid()
	s.Pitch = s.Width * sx
	s.ImageSize = s.Pitch * s.Height * sy * 4
	s.Alignment = surfaceAlignment
}

// ResolveAA implements Resolver
func (r *SoftwareResolver) ResolveAA(src *ColorBuffer, dst *Surface) error {
	if dst.AA != AA1X {
		return fmt.Errorf("resolve target must be single-sample, got %dx", dst.AA.Samples())
	}
	in, err := rgbaView(&src.Surface)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	out, err := rgbaView(dst)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	interp := r.Interpolator
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	interp.Scale(out, out.Bounds(), in, in.Bounds(), draw.Src, nil)
	return nil
}

// rgbaView wraps a surface's memory as an image without copying
func rgbaView(s *Surface) (*image.RGBA, error) {
	sx, sy := s.AA.grid()
	w, h := s.Width*sx, s.Height*sy
	pitch := s.Pitch
	if pitch == 0 {
		pitch = w
	}
	if pitch < w {
		return nil, fmt.Errorf("pitch %d shorter than row %d", pitch, w)
	}
	need := pitch * 4 * h
	if len(s.Image) < need {
		return nil, fmt.Errorf("image holds %d bytes, need %d", len(s.Image), need)
	}
	return &image.RGBA{
		Pix:    s.Image[:need],
		Stride: pitch * 4,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// RGBA returns the surface as an image, for inspection
func (s *Surface) RGBA() (*image.RGBA, error) {
	return rgbaView(s)
}

// MappedAllocator hands out byte slices up to an optional budget
type MappedAllocator struct {
	// Limit is the total number of bytes that may be outstanding; 0 is unlimited
	Limit int

	mu   sync.Mutex
	used int
	live map[*byte]int
}

// Alloc implements Allocator
func (a *MappedAllocator) Alloc(size, alignment int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrOutOfMemory, size)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("invalid alignment %d", alignment)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Limit > 0 && a.used+size > a.Limit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d in use", ErrOutOfMemory, size, a.used)
	}
	if a.live == nil {
		a.live = make(map[*byte]int)
	}
	b := make([]byte, size)
	a.live[&b[0]] = size
	a.used += size
	return b, nil
}

// Free implements Allocator
func (a *MappedAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if size, ok := a.live[&b[0]]; ok {
		delete(a.live, &b[0])
		a.used -= size
	}
}

// InUse returns the number of bytes currently allocated
func (a *MappedAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}
