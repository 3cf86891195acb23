package switcher

import (
	"errors"
	"testing"
)

type fakeVeto bool

func (f *fakeVeto) PrimaryAbsent() bool {
	return bool(*f)
}

// TestVetoedPanelRefused tests the suppression path
func TestVetoedPanelRefused(t *testing.T) {
	absent := fakeVeto(true)
	calls := 0
	s := New(func(PanelID) error { calls++; return nil }, &absent, "controller-sync")

	vetoed := 0
	s.SetOnVeto(func(PanelID) { vetoed++ })

	err := s.SwitchToPanel("controller-sync")
	if !errors.Is(err, ErrVetoed) {
		t.Errorf("Expected ErrVetoed, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected real switch not called, got %d calls", calls)
	}
	if vetoed != 1 {
		t.Errorf("Expected 1 veto notification, got %d", vetoed)
	}

	if err := s.SwitchToPanel("internet"); err != nil {
		t.Errorf("Expected other panel allowed, got %v", err)
	}
	if s.GetCurrentPanel() != "internet" {
		t.Errorf("Expected current panel 'internet', got '%s'", s.GetCurrentPanel())
	}
}

// TestVetoedPanelAllowedWithController tests the pass-through path
func TestVetoedPanelAllowedWithController(t *testing.T) {
	absent := fakeVeto(false)
	var got PanelID
	s := New(func(p PanelID) error { got = p; return nil }, &absent, "controller-sync")

	switched := ""
	s.SetOnSwitch(func(p PanelID) { switched = string(p) })

	if err := s.SwitchToPanel("controller-sync"); err != nil {
		t.Fatalf("Expected switch allowed, got %v", err)
	}
	if got != "controller-sync" || switched != "controller-sync" {
		t.Errorf("Expected switch to controller-sync, got '%s' / '%s'", got, switched)
	}
}

func TestRealSwitchError(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(PanelID) error { return boom }, nil, "")
	if err := s.SwitchToPanel("tv"); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if err := s.SwitchToPanel(""); err == nil {
		t.Error("Expected error for empty panel")
	}
}
