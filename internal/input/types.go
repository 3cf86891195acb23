// Package input provides the controller status records and the button
// aggregation that forwards auxiliary controller input to the primary one.
package input

// Channel identifies a controller slot
type Channel int

// ReadStatus is the result code of a primary controller poll
type ReadStatus int32

const (
	ReadSuccess           ReadStatus = 0
	ReadNoSamples         ReadStatus = -1
	ReadInvalidController ReadStatus = -2
)

// String returns a readable name for the status code
func (s ReadStatus) String() string {
	switch s {
	case ReadSuccess:
		return "success"
	case ReadNoSamples:
		return "no samples"
	case ReadInvalidController:
		return "invalid controller"
	default:
		return "unknown"
	}
}

// Touch validity flags
const (
	TouchValid    uint16 = 0
	TouchInvalidX uint16 = 0x01
	TouchInvalidY uint16 = 0x02
)

// TouchData is one touch panel sample
type TouchData struct {
	X        uint16
	Y        uint16
	Touched  uint16
	Validity uint16
}

// Vec2 is an analog stick position
type Vec2 struct {
	X float32
	Y float32
}

// PrimaryStatus is one reading from the primary (GamePad) controller
type PrimaryStatus struct {
	Hold    uint32
	Trigger uint32
	Release uint32

	LeftStick  Vec2
	RightStick Vec2

	TouchNormal    TouchData
	TouchFiltered1 TouchData
	TouchFiltered2 TouchData

	Battery       uint8
	SlideVolume   uint8
	SlideVolumeEx uint8
	HeadphoneIn   bool
}

// ButtonMasks is the trigger/hold/release triple of one controller protocol
type ButtonMasks struct {
	Hold    uint32 `json:"hold"`
	Trigger uint32 `json:"trigger"`
	Release uint32 `json:"release"`
}

// ExtensionType identifies which auxiliary protocol produced a reading
type ExtensionType uint8

const (
	ExtensionNone    ExtensionType = 0
	ExtensionClassic ExtensionType = 2
	ExtensionPro     ExtensionType = 31
)

// AuxStatus is one reading from an auxiliary controller. Only the fields of
// the active extension are populated; the others stay zero.
type AuxStatus struct {
	Extension ExtensionType
	Classic   ButtonMasks
	Pro       ButtonMasks
}

// Pressed returns the OR of both protocols' trigger masks
func (s *AuxStatus) Pressed() uint32 {
	return s.Classic.Trigger | s.Pro.Trigger
}

// Held returns the OR of both protocols' hold masks
func (s *AuxStatus) Held() uint32 {
	return s.Classic.Hold | s.Pro.Hold
}

// Released returns the OR of both protocols' release masks
func (s *AuxStatus) Released() uint32 {
	return s.Classic.Release | s.Pro.Release
}

// PrimaryReadFunc polls the primary controller into buf, returning the number
// of samples written and a status code
type PrimaryReadFunc func(ch Channel, buf []PrimaryStatus) (int, ReadStatus)

// AuxInitFunc initializes the auxiliary controller ring buffer
type AuxInitFunc func(bufferSize int)

// SamplingCallback is invoked whenever new auxiliary data has been buffered
type SamplingCallback func(ch Channel)

// AuxSource provides auxiliary controller readings
type AuxSource interface {
	// Read returns the most recent reading for a channel
	Read(ch Channel) (AuxStatus, error)

	// SetSamplingCallback registers the function called when new data arrives
	SetSamplingCallback(ch Channel, cb SamplingCallback)
}
