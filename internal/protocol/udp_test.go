package protocol

import (
	"encoding/json"
	"testing"
)

func TestAuxPacketLayout(t *testing.T) {
	pkt := &UDPPacket{
		Type:      UDPPacketAux,
		Seq:       7,
		Timestamp: 1234,
		Channel:   2,
		Extension: 1,
		Pro:       [3]uint32{0x10, 0x10, 0},
	}
	data := EncodeUDPPacket(pkt)

	if len(data) != UDPHeaderSize+UDPAuxPayloadSize {
		t.Fatalf("Expected %d bytes, got %d", UDPHeaderSize+UDPAuxPayloadSize, len(data))
	}
	if data[UDPHeaderSize] != 2 {
		t.Errorf("Expected channel byte 2, got %d", data[UDPHeaderSize])
	}

	got, err := DecodeUDPPacket(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *got != *pkt {
		t.Errorf("Expected %+v, got %+v", *pkt, *got)
	}
}

func TestControlPacketHasNoPayload(t *testing.T) {
	data := EncodeUDPPacket(&UDPPacket{Type: UDPPacketHeartbeat, Seq: 1})
	if len(data) != UDPHeaderSize {
		t.Errorf("Expected %d bytes, got %d", UDPHeaderSize, len(data))
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{UDPPacketAux, 0, 0}},
		{"short aux payload", EncodeUDPPacket(&UDPPacket{Type: UDPPacketAux})[:UDPHeaderSize+2]},
		{"unknown type", make([]byte, UDPHeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeUDPPacket(tt.data); err == nil {
				t.Error("Expected an error, got nil")
			}
		})
	}
}

func TestStatusPayloadFieldNames(t *testing.T) {
	data, err := json.Marshal(StatusPayload{UIOpen: true, PrimaryAbsent: true})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw["ui_open"] != true {
		t.Errorf("Expected ui_open true, got %v", raw["ui_open"])
	}
	if _, ok := raw["application"]; ok {
		t.Error("Expected application to be omitted when empty")
	}
}
