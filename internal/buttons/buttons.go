// Package buttons defines the logical button identities shared by the primary
// controller and the auxiliary controller protocols.
package buttons

// Button is a logical button identity
type Button int

const (
	A Button = iota
	B
	X
	Y
	R
	L
	ZR
	ZL
	Up
	Down
	Left
	Right
	Plus
	Minus

	// Count is the number of logical buttons
	Count = int(Minus) + 1
)

// Primary (GamePad) button bits
const (
	PrimaryMinus uint32 = 0x0004
	PrimaryPlus  uint32 = 0x0008
	PrimaryR     uint32 = 0x0010
	PrimaryL     uint32 = 0x0020
	PrimaryZR    uint32 = 0x0040
	PrimaryZL    uint32 = 0x0080
	PrimaryDown  uint32 = 0x0100
	PrimaryUp    uint32 = 0x0200
	PrimaryRight uint32 = 0x0400
	PrimaryLeft  uint32 = 0x0800
	PrimaryY     uint32 = 0x1000
	PrimaryX     uint32 = 0x2000
	PrimaryB     uint32 = 0x4000
	PrimaryA     uint32 = 0x8000
)

// Classic controller button bits
const (
	ClassicUp    uint32 = 0x0001
	ClassicLeft  uint32 = 0x0002
	ClassicZR    uint32 = 0x0004
	ClassicX     uint32 = 0x0008
	ClassicA     uint32 = 0x0010
	ClassicY     uint32 = 0x0020
	ClassicB     uint32 = 0x0040
	ClassicZL    uint32 = 0x0080
	ClassicR     uint32 = 0x0200
	ClassicPlus  uint32 = 0x0400
	ClassicHome  uint32 = 0x0800
	ClassicMinus uint32 = 0x1000
	ClassicL     uint32 = 0x2000
	ClassicDown  uint32 = 0x4000
	ClassicRight uint32 = 0x8000

	ClassicStickLLeft  uint32 = 0x00010000
	ClassicStickLRight uint32 = 0x00020000
	ClassicStickLUp    uint32 = 0x00040000
	ClassicStickLDown  uint32 = 0x00080000
)

// Pro controller button bits
const (
	ProUp    uint32 = 0x0001
	ProLeft  uint32 = 0x0002
	ProZR    uint32 = 0x0004
	ProX     uint32 = 0x0008
	ProA     uint32 = 0x0010
	ProY     uint32 = 0x0020
	ProB     uint32 = 0x0040
	ProZL    uint32 = 0x0080
	ProR     uint32 = 0x0200
	ProPlus  uint32 = 0x0400
	ProHome  uint32 = 0x0800
	ProMinus uint32 = 0x1000
	ProL     uint32 = 0x2000
	ProDown  uint32 = 0x4000
	ProRight uint32 = 0x8000

	ProStickR uint32 = 0x00010000
	ProStickL uint32 = 0x00020000

	ProStickLLeft  uint32 = 0x00040000
	ProStickLRight uint32 = 0x00080000
	ProStickLUp    uint32 = 0x00100000
	ProStickLDown  uint32 = 0x00200000
)

// Mapping binds a logical button to its bits in each protocol
type Mapping struct {
	Button  Button
	Name    string
	Primary uint32
	Classic uint32
	Pro     uint32
}

// Aux returns the combined auxiliary mask (classic or pro)
func (m Mapping) Aux() uint32 {
	return m.Classic | m.Pro
}

var mappings = [Count]Mapping{
	{A, "A", PrimaryA, ClassicA, ProA},
	{B, "B", PrimaryB, ClassicB, ProB},
	{X, "X", PrimaryX, ClassicX, ProX},
	{Y, "Y", PrimaryY, ClassicY, ProY},
	{R, "R", PrimaryR, ClassicR, ProR},
	{L, "L", PrimaryL, ClassicL, ProL},
	{ZR, "ZR", PrimaryZR, ClassicZR, ProZR},
	{ZL, "ZL", PrimaryZL, ClassicZL, ProZL},
	// d-pad directions also accept left stick emulation
	{Up, "Up", PrimaryUp, ClassicUp | ClassicStickLUp, ProUp | ProStickLUp},
	{Down, "Down", PrimaryDown, ClassicDown | ClassicStickLDown, ProDown | ProStickLDown},
	{Left, "Left", PrimaryLeft, ClassicLeft | ClassicStickLLeft, ProLeft | ProStickLLeft},
	{Right, "Right", PrimaryRight, ClassicRight | ClassicStickLRight, ProRight | ProStickLRight},
	{Plus, "Plus", PrimaryPlus, ClassicPlus, ProPlus},
	{Minus, "Minus", PrimaryMinus, ClassicMinus, ProMinus},
}

// Table is the aggregation lookup table: auxiliary mask and primary bit per button
type Table [Count]struct {
	Aux     uint32
	Primary uint32
}

var table = buildTable()

func buildTable() Table {
	var t Table
	for _, m := range mappings {
		t[m.Button].Aux = m.Aux()
		t[m.Button].Primary = m.Primary
	}
	return t
}

// Lookup returns the prebuilt aggregation table
func Lookup() *Table {
	return &table
}

// Mappings returns a copy of the per-protocol mapping for every button
func Mappings() []Mapping {
	out := make([]Mapping, Count)
	copy(out, mappings[:])
	return out
}

// All returns every logical button in identity order
func All() []Button {
	out := make([]Button, Count)
	for i := range out {
		out[i] = Button(i)
	}
	return out
}

// String returns the human-readable name of the button
func (b Button) String() string {
	if b < 0 || int(b) >= Count {
		return "Unknown"
	}
	return mappings[b].Name
}

// PrimaryMask folds a set of buttons into primary protocol bits
func PrimaryMask(bs ...Button) uint32 {
	var mask uint32
	for _, b := range bs {
		mask |= table[b].Primary
	}
	return mask
}
