package buttons

import "testing"

// TestTableCoversEveryButton checks that no button is left without bits
func TestTableCoversEveryButton(t *testing.T) {
	tbl := Lookup()
	for _, b := range All() {
		if tbl[b].Aux == 0 {
			t.Errorf("Expected aux mask for %s, got 0", b)
		}
		if tbl[b].Primary == 0 {
			t.Errorf("Expected primary bit for %s, got 0", b)
		}
	}
}

// TestPrimaryBitsAreDistinct ensures merging never aliases two buttons
func TestPrimaryBitsAreDistinct(t *testing.T) {
	seen := make(map[uint32]Button)
	for _, b := range All() {
		bit := Lookup()[b].Primary
		if other, ok := seen[bit]; ok {
			t.Errorf("Primary bit 0x%X shared by %s and %s", bit, other, b)
		}
		seen[bit] = b
	}
}

// TestAuxMaskCombinesProtocols tests that either protocol reports the button
func TestAuxMaskCombinesProtocols(t *testing.T) {
	up := Lookup()[Up].Aux
	for _, bit := range []uint32{ClassicUp, ClassicStickLUp, ProUp, ProStickLUp} {
		if up&bit == 0 {
			t.Errorf("Expected Up aux mask to contain 0x%X, got 0x%X", bit, up)
		}
	}
	if Lookup()[A].Aux&ProHome != 0 {
		t.Error("Home must not map onto A")
	}
}

// TestButtonString tests names and out of range identities
func TestButtonString(t *testing.T) {
	if ZL.String() != "ZL" {
		t.Errorf("Expected 'ZL', got '%s'", ZL.String())
	}
	if Button(Count).String() != "Unknown" {
		t.Errorf("Expected 'Unknown', got '%s'", Button(Count).String())
	}
}

func TestPrimaryMask(t *testing.T) {
	got := PrimaryMask(A, Minus)
	if got != PrimaryA|PrimaryMinus {
		t.Errorf("Expected 0x%X, got 0x%X", PrimaryA|PrimaryMinus, got)
	}
}
