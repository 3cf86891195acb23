package gating

import (
	"log"
	"sync"
)

// Resetter clears accumulated input state
type Resetter interface {
	Reset()
}

// Capabilities are the effective feature switches
type Capabilities struct {
	Mirror   bool `json:"mirror"`
	Redirect bool `json:"redirect"`
}

// Gate derives the effective capabilities from the persisted flags, the
// running application and the configuration UI state. The effective values
// are computed on every read and never cached.
type Gate struct {
	mu        sync.Mutex
	predicate Predicate
	resetter  Resetter

	mirror   bool
	redirect bool

	current ApplicationID
	started bool
	uiOpen  bool

	primaryAbsent bool

	onChange func(Capabilities)
}

// New creates a gate with both persisted flags enabled and no application running
func New(predicate Predicate, resetter Resetter) *Gate {
	return &Gate{
		predicate: predicate,
		resetter:  resetter,
		mirror:    true,
		redirect:  true,
	}
}

// SetOnChange sets the callback for effective capability changes
func (g *Gate) SetOnChange(callback func(Capabilities)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = callback
}

func (g *Gate) capabilitiesLocked() Capabilities {
	active := g.started && !g.uiOpen && g.predicate.Matches(g.current)
	return Capabilities{
		Mirror:   g.mirror && active,
		Redirect: g.redirect && active,
	}
}

// transition applies fn and resets the input state when redirection stops
// being effective, or unconditionally when forceReset is set
func (g *Gate) transition(fn func(), forceReset bool) {
	g.mu.Lock()
	before := g.capabilitiesLocked()
	fn()
	after := g.capabilitiesLocked()
	if !after.Redirect {
		g.primaryAbsent = false
	}
	if forceReset || (before.Redirect && !after.Redirect) {
		g.resetter.Reset()
	}
	cb := g.onChange
	g.mu.Unlock()

	if before != after {
		log.Printf("Gate: mirror=%v redirect=%v", after.Mirror, after.Redirect)
		if cb != nil {
			cb(after)
		}
	}
}

// Capabilities returns the current effective capabilities
func (g *Gate) Capabilities() Capabilities {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capabilitiesLocked()
}

// Settings returns the persisted flags
func (g *Gate) Settings() (mirror, redirect bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mirror, g.redirect
}

// SetMirror updates the persisted mirroring flag
func (g *Gate) SetMirror(enabled bool) {
	g.transition(func() { g.mirror = enabled }, false)
}

// SetRedirect updates the persisted redirection flag
func (g *Gate) SetRedirect(enabled bool) {
	g.transition(func() { g.redirect = enabled }, false)
}

// ApplicationStarted records the application now running
func (g *Gate) ApplicationStarted(id ApplicationID) {
	log.Printf("Gate: application %s started", id)
	g.transition(func() {
		g.current = id
		g.started = true
	}, false)
}

// Application returns the running application, if one was reported
func (g *Gate) Application() (ApplicationID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.started
}

// OpenUI disables both capabilities while the configuration UI is shown
func (g *Gate) OpenUI() {
	g.transition(func() { g.uiOpen = true }, true)
}

// CloseUI re-evaluates the capabilities after the configuration UI is closed
func (g *Gate) CloseUI() {
	g.transition(func() { g.uiOpen = false }, false)
}

// UIOpen reports whether the configuration UI is shown
func (g *Gate) UIOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uiOpen
}

// WhileRedirecting runs fn if redirection is effective, holding the gate so
// that no transition (and its reset) can interleave with fn
func (g *Gate) WhileRedirecting(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.capabilitiesLocked().Redirect {
		return false
	}
	fn()
	return true
}

// SetPrimaryAbsent records whether the last primary poll found no controller.
// The flag is dropped while redirection is not effective.
func (g *Gate) SetPrimaryAbsent(absent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primaryAbsent = absent && g.capabilitiesLocked().Redirect
}

// PrimaryAbsent reports a missing primary controller during redirection
func (g *Gate) PrimaryAbsent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.primaryAbsent && g.capabilitiesLocked().Redirect
}
