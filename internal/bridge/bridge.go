// Package bridge wires the button aggregator and the gate to the intercepted
// controller, display and configuration entry points.
package bridge

import (
	"errors"
	"fmt"
	"log"

	"padbridge/internal/display"
	"padbridge/internal/gating"
	"padbridge/internal/input"
)

// Setting keys and their menu labels
const (
	MirrorScreensKey    = "mirrorScreens"
	InputRedirectionKey = "inputRedirection"

	MirrorScreensLabel    = "Mirror Gamepad screen to the TV"
	InputRedirectionLabel = "Redirect inputs"
)

// Store persists the two toggles
type Store interface {
	LoadBool(key string) (bool, error)
	StoreBool(key string, value bool) error
	Save() error
}

// Menu is the configuration UI the toggles are registered with
type Menu interface {
	AddToggle(key, label string, defaultValue, current bool, onChange func(bool)) error
}

// Options configures a Bridge
type Options struct {
	Store     Store
	Predicate gating.Predicate
	Aux       input.AuxSource

	// Resolver and Allocator default to the software implementations
	Resolver  display.Resolver
	Allocator display.Allocator
}

// Bridge is the redirection core. One instance exists per process.
type Bridge struct {
	store    Store
	agg      *input.Aggregator
	gate     *gating.Gate
	aux      input.AuxSource
	resolver display.Resolver
	alloc    display.Allocator
}

// New creates a bridge with both toggles enabled
func New(opts Options) *Bridge {
	agg := input.NewAggregator()
	b := &Bridge{
		store:    opts.Store,
		agg:      agg,
		gate:     gating.New(opts.Predicate, agg),
		aux:      opts.Aux,
		resolver: opts.Resolver,
		alloc:    opts.Allocator,
	}
	if b.resolver == nil {
		b.resolver = &display.SoftwareResolver{}
	}
	if b.alloc == nil {
		b.alloc = &display.MappedAllocator{}
	}
	return b
}

// Gate returns the gating state machine
func (b *Bridge) Gate() *gating.Gate {
	return b.gate
}

// Aggregator returns the button aggregator
func (b *Bridge) Aggregator() *input.Aggregator {
	return b.agg
}

// LoadSettings reads both toggles, writing the default for missing ones.
// Store failures are logged and leave the default in effect.
func (b *Bridge) LoadSettings() {
	b.gate.SetMirror(b.loadSetting(MirrorScreensKey))
	b.gate.SetRedirect(b.loadSetting(InputRedirectionKey))

	if err := b.store.Save(); err != nil {
		log.Printf("Bridge: Failed to save settings: %v", err)
	}
}

func (b *Bridge) loadSetting(key string) bool {
	const def = true

	v, err := b.store.LoadBool(key)
	switch {
	case err == nil:
		log.Printf("Bridge: Read %s=%v from storage", key, v)
		return v
	case errors.Is(err, ErrNotFound):
		if err := b.store.StoreBool(key, def); err != nil {
			log.Printf("Bridge: Failed to store default for %s: %v", key, err)
		}
	default:
		log.Printf("Bridge: Failed to read %s: %v", key, err)
	}
	return def
}

// ConfigOpened disables redirection and mirroring and registers the toggles.
// A registration failure is returned to the UI; the bridge stays consistent.
func (b *Bridge) ConfigOpened(m Menu) error {
	b.gate.OpenUI()

	mirror, redirect := b.gate.Settings()
	items := []struct {
		key, label string
		current    bool
	}{
		{MirrorScreensKey, MirrorScreensLabel, mirror},
		{InputRedirectionKey, InputRedirectionLabel, redirect},
	}

	for _, it := range items {
		key := it.key
		if err := m.AddToggle(key, it.label, true, it.current, func(v bool) { b.ValueChanged(key, v) }); err != nil {
			log.Printf("Bridge: Failed to add item %s: %v", key, err)
			b.gate.CloseUI()
			return fmt.Errorf("%w: %s: %v", ErrMenuItem, key, err)
		}
	}
	return nil
}

// ValueChanged applies and stores a toggle changed in the UI
func (b *Bridge) ValueChanged(key string, value bool) {
	switch key {
	case MirrorScreensKey:
		b.gate.SetMirror(value)
	case InputRedirectionKey:
		b.gate.SetRedirect(value)
	default:
		log.Printf("Bridge: Ignoring unknown setting %s", key)
		return
	}

	if err := b.store.StoreBool(key, value); err != nil {
		log.Printf("Bridge: Failed to store %s: %v", key, err)
	}
}

// ConfigClosed persists the toggles and re-enables the gated features
func (b *Bridge) ConfigClosed() {
	if err := b.store.Save(); err != nil {
		log.Printf("Bridge: Failed to save settings: %v", err)
	}
	b.agg.Reset()
	b.gate.CloseUI()
}

// ApplicationStarted records a newly launched application
func (b *Bridge) ApplicationStarted(id gating.ApplicationID) {
	b.gate.ApplicationStarted(id)
}

// PrimaryAbsent reports a missing primary controller during redirection
func (b *Bridge) PrimaryAbsent() bool {
	return b.gate.PrimaryAbsent()
}

// emptyReading is what an idle, fully charged primary controller reports
func emptyReading() input.PrimaryStatus {
	invalid := input.TouchInvalidX | input.TouchInvalidY
	return input.PrimaryStatus{
		Battery:        0xC0,
		SlideVolume:    0xFF,
		SlideVolumeEx:  0xFF,
		TouchNormal:    input.TouchData{Validity: invalid},
		TouchFiltered1: input.TouchData{Validity: invalid},
		TouchFiltered2: input.TouchData{Validity: invalid},
	}
}

// ReadPrimary wraps the primary controller poll. While redirecting, a failed
// poll is replaced by an empty successful reading and the accumulated
// auxiliary buttons are merged into the first sample.
func (b *Bridge) ReadPrimary(real input.PrimaryReadFunc) input.PrimaryReadFunc {
	return func(ch input.Channel, buf []input.PrimaryStatus) (int, input.ReadStatus) {
		n, status := real(ch, buf)
		b.gate.SetPrimaryAbsent(status != input.ReadSuccess)

		b.gate.WhileRedirecting(func() {
			if len(buf) == 0 {
				return
			}
			if status != input.ReadSuccess {
				status = input.ReadSuccess
				n = 1
				buf[0] = emptyReading()
			}
			b.agg.MergeInto(&buf[0])
		})
		return n, status
	}
}

// InitAux wraps the auxiliary buffer setup to install the sampling callback
func (b *Bridge) InitAux(real input.AuxInitFunc) input.AuxInitFunc {
	return func(bufferSize int) {
		real(bufferSize)
		if b.aux == nil {
			return
		}
		b.aux.SetSamplingCallback(0, b.SampleAux)
	}
}

// SampleAux reads one auxiliary reading and accumulates it. Read errors are
// ignored and leave the accumulated state as it was.
func (b *Bridge) SampleAux(ch input.Channel) {
	if b.aux == nil {
		return
	}
	b.gate.WhileRedirecting(func() {
		st, err := b.aux.Read(ch)
		if err != nil {
			return
		}
		b.agg.IngestAux(&st)
	})
}

// CopyToScanBuffer wraps the scan-buffer copy. While mirroring, a GamePad-only
// copy goes to both outputs, and a multisampled buffer is resolved first.
func (b *Bridge) CopyToScanBuffer(real display.SubmitFunc) display.SubmitFunc {
	return func(cb *display.ColorBuffer, target display.ScanTarget) {
		if !b.gate.Capabilities().Mirror {
			real(cb, target)
			return
		}

		mirrored := target
		if target == display.TargetDRC {
			mirrored = display.TargetTV | display.TargetDRC
		}

		if cb.Surface.AA == display.AA1X {
			real(cb, mirrored)
			return
		}

		tmp := cb.Surface
		tmp.AA = display.AA1X
		tmp.Image = nil
		b.resolver.CalcSurfaceSizeAndAlignment(&tmp)

		img, err := b.alloc.Alloc(tmp.ImageSize, tmp.Alignment)
		if err != nil {
			log.Printf("Bridge: Failed to allocate %d bytes for resolving AA: %v", tmp.ImageSize, err)
			real(cb, target)
			return
		}
		defer b.alloc.Free(img)
		tmp.Image = img

		if err := b.resolver.ResolveAA(cb, &tmp); err != nil {
			log.Printf("Bridge: Failed to resolve AA buffer: %v", err)
			real(cb, target)
			return
		}

		saved := cb.Surface
		cb.Surface = tmp
		defer func() { cb.Surface = saved }()
		real(cb, mirrored)
	}
}
