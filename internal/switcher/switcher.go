// Package switcher guards panel switches that need a primary controller.
package switcher

import (
	"fmt"
	"log"
	"sync"
)

// PanelID identifies a settings panel
type PanelID string

// SwitchFunc performs the real panel switch
type SwitchFunc func(panel PanelID) error

// VetoSource reports whether the primary controller is missing while input
// is being redirected
type VetoSource interface {
	PrimaryAbsent() bool
}

// Switcher wraps the real panel switch and refuses the vetoed panel while the
// primary controller is absent
type Switcher struct {
	mu     sync.Mutex
	real   SwitchFunc
	veto   VetoSource
	vetoed PanelID

	current PanelID

	// Callbacks for UI notifications
	onSwitch func(panel PanelID)
	onVeto   func(panel PanelID)
}

// New creates a new Switcher instance
func New(real SwitchFunc, veto VetoSource, vetoed PanelID) *Switcher {
	return &Switcher{
		real:   real,
		veto:   veto,
		vetoed: vetoed,
	}
}

// SetOnSwitch sets the callback for switch events
func (s *Switcher) SetOnSwitch(callback func(panel PanelID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwitch = callback
}

// SetOnVeto sets the callback for refused switches
func (s *Switcher) SetOnVeto(callback func(panel PanelID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVeto = callback
}

// SwitchToPanel switches to a panel unless it is vetoed
func (s *Switcher) SwitchToPanel(panel PanelID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if panel == "" {
		return fmt.Errorf("empty panel id")
	}

	if panel == s.vetoed && s.veto != nil && s.veto.PrimaryAbsent() {
		log.Printf("Switcher: Refusing switch to '%s' without a primary controller", panel)
		if s.onVeto != nil {
			s.onVeto(panel)
		}
		return fmt.Errorf("%w: %s", ErrVetoed, panel)
	}

	if err := s.real(panel); err != nil {
		return fmt.Errorf("switch to %s: %w", panel, err)
	}
	s.current = panel

	if s.onSwitch != nil {
		s.onSwitch(panel)
	}
	return nil
}

// GetCurrentPanel returns the last panel switched to
func (s *Switcher) GetCurrentPanel() PanelID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
