// Package host stands in for the application the bridge is loaded into. It
// runs a frame loop that polls the primary controller and submits one GamePad
// frame per tick through the intercepted entry points.
package host

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"padbridge/internal/buttons"
	"padbridge/internal/display"
	"padbridge/internal/input"
)

// GamePad screen size
const (
	ScreenWidth  = 854
	ScreenHeight = 480
)

// Disconnected is the primary poll of a host without a GamePad
func Disconnected(ch input.Channel, buf []input.PrimaryStatus) (int, input.ReadStatus) {
	return 0, input.ReadInvalidController
}

// InitAux is the host's auxiliary buffer setup; the desktop has nothing to set up
func InitAux(bufferSize int) {
	log.Printf("Host: Auxiliary sampling buffer of %d entries", bufferSize)
}

// NewFrame allocates a GamePad-sized color buffer
func NewFrame(r display.Resolver, aa display.AAMode) *display.ColorBuffer {
	cb := &display.ColorBuffer{Surface: display.Surface{
		Width:  ScreenWidth,
		Height: ScreenHeight,
		AA:     aa,
	}}
	r.CalcSurfaceSizeAndAlignment(&cb.Surface)
	cb.Surface.Image = make([]byte, cb.Surface.ImageSize)
	return cb
}

// Screens counts the frames that reached each output
type Screens struct {
	tv  atomic.Uint64
	drc atomic.Uint64
}

// Submit is the host's scan-buffer copy
func (s *Screens) Submit(cb *display.ColorBuffer, target display.ScanTarget) {
	if target&display.TargetTV != 0 {
		s.tv.Add(1)
	}
	if target&display.TargetDRC != 0 {
		s.drc.Add(1)
	}
}

// Counts returns the frames shown on the TV and on the GamePad
func (s *Screens) Counts() (tv, drc uint64) {
	return s.tv.Load(), s.drc.Load()
}

// Loop is the host frame loop
type Loop struct {
	read     input.PrimaryReadFunc
	submit   display.SubmitFunc
	frame    *display.ColorBuffer
	interval time.Duration

	mu        sync.Mutex
	lastHold  uint32
	onButtons func(hold, trigger uint32)

	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates a frame loop over the (wrapped) poll and submit functions
func NewLoop(read input.PrimaryReadFunc, submit display.SubmitFunc, frame *display.ColorBuffer, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Loop{
		read:     read,
		submit:   submit,
		frame:    frame,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// SetOnButtons sets the callback for changes of the held buttons
func (l *Loop) SetOnButtons(callback func(hold, trigger uint32)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onButtons = callback
}

// Start runs the loop in the background
func (l *Loop) Start() {
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Tick()
			case <-l.done:
				return
			}
		}
	}()
}

// Stop ends the loop
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Tick runs one frame
func (l *Loop) Tick() {
	var buf [1]input.PrimaryStatus
	n, status := l.read(0, buf[:])

	if status == input.ReadSuccess && n > 0 {
		l.mu.Lock()
		changed := buf[0].Hold != l.lastHold
		l.lastHold = buf[0].Hold
		cb := l.onButtons
		l.mu.Unlock()

		if changed && cb != nil {
			cb(buf[0].Hold, buf[0].Trigger)
		}
	}

	l.submit(l.frame, display.TargetDRC)
}

// Describe names the buttons set in a primary mask
func Describe(mask uint32) string {
	var names []string
	for _, m := range buttons.Mappings() {
		if mask&m.Primary != 0 {
			names = append(names, m.Name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}
