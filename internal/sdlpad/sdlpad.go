// Package sdlpad reads locally attached game controllers through SDL and
// exposes them as pro controller readings.
package sdlpad

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"padbridge/internal/input"

	"github.com/veandco/go-sdl2/sdl"
)

// MaxChannels is the number of controllers read at once
const MaxChannels = 4

// ErrStopped is returned by Start after Stop
var ErrStopped = errors.New("sdlpad: stopped")

// Source polls SDL game controllers. Each poll produces one reading per
// attached controller and invokes the sampling callback of its channel.
type Source struct {
	interval time.Duration

	mu        sync.Mutex
	latest    map[input.Channel]input.AuxStatus
	prev      map[input.Channel]uint32
	callbacks map[input.Channel]input.SamplingCallback

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// New creates a source polling every interval
func New(interval time.Duration) *Source {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	return &Source{
		interval:  interval,
		latest:    make(map[input.Channel]input.AuxStatus),
		prev:      make(map[input.Channel]uint32),
		callbacks: make(map[input.Channel]input.SamplingCallback),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Read returns the most recent reading for a channel
func (s *Source) Read(ch input.Channel) (input.AuxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.latest[ch]
	if !ok {
		return input.AuxStatus{}, input.ErrNoController
	}
	return st, nil
}

// SetSamplingCallback registers the function called after every poll
func (s *Source) SetSamplingCallback(ch input.Channel, cb input.SamplingCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb == nil {
		delete(s.callbacks, ch)
		return
	}
	s.callbacks[ch] = cb
}

// Start initializes SDL on a dedicated OS thread and begins polling
func (s *Source) Start() error {
	errCh := make(chan error, 1)
	go s.loop(errCh)
	return <-errCh
}

// Stop ends polling and shuts SDL down
func (s *Source) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *Source) loop(errCh chan<- error) {
	defer close(s.stopped)

	// SDL must be driven from the thread that initialized it
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := sdl.Init(sdl.INIT_GAMECONTROLLER); err != nil {
		errCh <- fmt.Errorf("sdl: %w", err)
		return
	}
	defer sdl.Quit()

	select {
	case <-s.done:
		errCh <- ErrStopped
		return
	default:
		errCh <- nil
	}

	pads := make(map[input.Channel]*sdl.GameController)
	defer func() {
		for _, pad := range pads {
			pad.Close()
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			sdl.PumpEvents()
			sdl.GameControllerUpdate()
			s.attach(pads)

			for ch, pad := range pads {
				if !pad.Attached() {
					log.Printf("SDL Pad: Controller on channel %d detached", ch)
					pad.Close()
					delete(pads, ch)
					s.detach(ch)
					continue
				}
				s.update(ch, readSnapshot(pad).ProMask())
			}
		}
	}
}

// attach opens newly connected controllers on free channels
func (s *Source) attach(pads map[input.Channel]*sdl.GameController) {
	if len(pads) >= MaxChannels || sdl.NumJoysticks() <= len(pads) {
		return
	}

	open := make(map[sdl.JoystickID]bool, len(pads))
	for _, pad := range pads {
		open[pad.Joystick().InstanceID()] = true
	}

	for i := 0; i < sdl.NumJoysticks() && len(pads) < MaxChannels; i++ {
		if !sdl.IsGameController(i) {
			continue
		}
		pad := sdl.GameControllerOpen(i)
		if pad == nil || !pad.Attached() {
			continue
		}
		if open[pad.Joystick().InstanceID()] {
			// SDL refcounts opens; drop the extra one
			pad.Close()
			continue
		}

		ch := freeChannel(pads)
		pads[ch] = pad
		open[pad.Joystick().InstanceID()] = true
		log.Printf("SDL Pad: %s attached on channel %d", pad.Name(), ch)
	}
}

func freeChannel(pads map[input.Channel]*sdl.GameController) input.Channel {
	for ch := input.Channel(0); ; ch++ {
		if _, used := pads[ch]; !used {
			return ch
		}
	}
}

func readSnapshot(pad *sdl.GameController) Snapshot {
	pressed := func(b sdl.GameControllerButton) bool {
		return pad.Button(b) != 0
	}
	return Snapshot{
		South:      pressed(sdl.CONTROLLER_BUTTON_A),
		East:       pressed(sdl.CONTROLLER_BUTTON_B),
		West:       pressed(sdl.CONTROLLER_BUTTON_X),
		North:      pressed(sdl.CONTROLLER_BUTTON_Y),
		L:          pressed(sdl.CONTROLLER_BUTTON_LEFTSHOULDER),
		R:          pressed(sdl.CONTROLLER_BUTTON_RIGHTSHOULDER),
		Start:      pressed(sdl.CONTROLLER_BUTTON_START),
		Back:       pressed(sdl.CONTROLLER_BUTTON_BACK),
		Guide:      pressed(sdl.CONTROLLER_BUTTON_GUIDE),
		LeftStick:  pressed(sdl.CONTROLLER_BUTTON_LEFTSTICK),
		RightStick: pressed(sdl.CONTROLLER_BUTTON_RIGHTSTICK),
		Up:         pressed(sdl.CONTROLLER_BUTTON_DPAD_UP),
		Down:       pressed(sdl.CONTROLLER_BUTTON_DPAD_DOWN),
		Left:       pressed(sdl.CONTROLLER_BUTTON_DPAD_LEFT),
		Right:      pressed(sdl.CONTROLLER_BUTTON_DPAD_RIGHT),
		LeftX:      pad.Axis(sdl.CONTROLLER_AXIS_LEFTX),
		LeftY:      pad.Axis(sdl.CONTROLLER_AXIS_LEFTY),
		TriggerL:   pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERLEFT),
		TriggerR:   pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERRIGHT),
	}
}

// update records one poll of a channel and notifies its callback
func (s *Source) update(ch input.Channel, mask uint32) {
	s.mu.Lock()
	s.latest[ch] = input.AuxStatus{
		Extension: input.ExtensionPro,
		Pro:       Edges(s.prev[ch], mask),
	}
	s.prev[ch] = mask
	cb := s.callbacks[ch]
	s.mu.Unlock()

	if cb != nil {
		cb(ch)
	}
}

// detach releases every button still held and forgets the channel
func (s *Source) detach(ch input.Channel) {
	s.update(ch, 0)

	s.mu.Lock()
	delete(s.latest, ch)
	delete(s.prev, ch)
	s.mu.Unlock()
}
