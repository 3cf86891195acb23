package sdlpad

import (
	"padbridge/internal/buttons"
	"padbridge/internal/input"
)

// StickDeadzone is the left stick deflection that counts as a d-pad press
const StickDeadzone = 16000

// TriggerThreshold is the analog trigger value that counts as ZL/ZR
const TriggerThreshold = 8000

// Snapshot is the raw state of one game controller. Face buttons are named by
// position so that the Nintendo layout comes out right on any pad.
type Snapshot struct {
	South, East, West, North bool
	L, R                     bool
	Start, Back, Guide       bool
	LeftStick, RightStick    bool
	Up, Down, Left, Right    bool

	LeftX, LeftY       int16
	TriggerL, TriggerR int16
}

// ProMask encodes a snapshot with the pro controller bit layout
func (s Snapshot) ProMask() uint32 {
	var m uint32
	set := func(on bool, bit uint32) {
		if on {
			m |= bit
		}
	}

	set(s.East, buttons.ProA)
	set(s.South, buttons.ProB)
	set(s.North, buttons.ProX)
	set(s.West, buttons.ProY)
	set(s.L, buttons.ProL)
	set(s.R, buttons.ProR)
	set(s.TriggerL > TriggerThreshold, buttons.ProZL)
	set(s.TriggerR > TriggerThreshold, buttons.ProZR)
	set(s.Start, buttons.ProPlus)
	set(s.Back, buttons.ProMinus)
	set(s.Guide, buttons.ProHome)
	set(s.LeftStick, buttons.ProStickL)
	set(s.RightStick, buttons.ProStickR)
	set(s.Up, buttons.ProUp)
	set(s.Down, buttons.ProDown)
	set(s.Left, buttons.ProLeft)
	set(s.Right, buttons.ProRight)

	// SDL's Y axis grows downwards
	set(s.LeftX < -StickDeadzone, buttons.ProStickLLeft)
	set(s.LeftX > StickDeadzone, buttons.ProStickLRight)
	set(s.LeftY < -StickDeadzone, buttons.ProStickLUp)
	set(s.LeftY > StickDeadzone, buttons.ProStickLDown)

	return m
}

// Edges derives the hold/trigger/release triple between two polls
func Edges(prev, cur uint32) input.ButtonMasks {
	return input.ButtonMasks{
		Hold:    cur,
		Trigger: cur &^ prev,
		Release: prev &^ cur,
	}
}
