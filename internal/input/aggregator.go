package input

import (
	"sync"

	"padbridge/internal/buttons"
)

// ButtonState is the accumulated state of one logical button.
// JustPressed is a latch: reading it does not clear it, only a release or a
// reset does.
type ButtonState struct {
	JustPressed bool
	Held        bool
}

// Aggregator accumulates auxiliary controller presses between primary polls
type Aggregator struct {
	mu    sync.Mutex
	table *buttons.Table
	state [buttons.Count]ButtonState
}

// NewAggregator creates an aggregator with every button released
func NewAggregator() *Aggregator {
	return &Aggregator{table: buttons.Lookup()}
}

// Ingest applies one reading of raw auxiliary masks. The masks must already
// combine both protocols. Release takes precedence over press and hold for the
// same button in the same call.
func (a *Aggregator) Ingest(pressed, held, released uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.state {
		mask := a.table[i].Aux
		st := &a.state[i]
		if pressed&mask != 0 {
			st.JustPressed = true
		}
		if held&mask != 0 {
			st.Held = true
		}
		if released&mask != 0 {
			st.JustPressed = false
			st.Held = false
		}
	}
}

// IngestAux applies an auxiliary status, combining its classic and pro fields
func (a *Aggregator) IngestAux(st *AuxStatus) {
	a.Ingest(st.Pressed(), st.Held(), st.Released())
}

// MergeInto ORs the accumulated state into a primary status. Bits already set
// by the primary controller are left untouched.
func (a *Aggregator) MergeInto(st *PrimaryStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, bs := range a.state {
		bit := a.table[i].Primary
		if bs.JustPressed {
			st.Trigger |= bit
		}
		if bs.Held {
			st.Hold |= bit
		}
	}
}

// Reset releases every button
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = [buttons.Count]ButtonState{}
}

// Snapshot returns the current state of one button
func (a *Aggregator) Snapshot(b buttons.Button) ButtonState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state[b]
}
