package protocol

import (
	"encoding/binary"
	"errors"
)

// UDP Packet types
const (
	UDPPacketAux       uint8 = 0x01
	UDPPacketRegister  uint8 = 0x10
	UDPPacketHeartbeat uint8 = 0x11
	UDPPacketAck       uint8 = 0x12 // Bridge -> controller: confirms UDP path is open
)

// Header: [type(1)] [seq(4)] [timestamp(8)] = 13 bytes
const UDPHeaderSize = 13

// UDPAuxPayloadSize is channel(1) + extension(1) + 6 masks(4)
const UDPAuxPayloadSize = 26

// UDPPacket represents one binary-encoded auxiliary controller reading.
//
// Wire format per type:
//
//	Aux       (0x01): header + channel(uint8) + extension(uint8)
//	                  + classic hold/trigger/release(uint32 x3)
//	                  + pro hold/trigger/release(uint32 x3)          = 39 bytes
//	Register  (0x10): header only                                   = 13 bytes
//	Heartbeat (0x11): header only                                   = 13 bytes
//	Ack       (0x12): header only                                   = 13 bytes
type UDPPacket struct {
	Type      uint8
	Seq       uint32
	Timestamp int64

	Channel   uint8
	Extension uint8
	Classic   [3]uint32 // hold, trigger, release
	Pro       [3]uint32 // hold, trigger, release
}

// EncodeUDPPacket serializes a UDPPacket to wire format.
func EncodeUDPPacket(pkt *UDPPacket) []byte {
	size := UDPHeaderSize
	if pkt.Type == UDPPacketAux {
		size += UDPAuxPayloadSize
	}

	buf := make([]byte, size)
	buf[0] = pkt.Type
	binary.BigEndian.PutUint32(buf[1:5], pkt.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(pkt.Timestamp))

	if pkt.Type == UDPPacketAux {
		payload := buf[UDPHeaderSize:]
		payload[0] = pkt.Channel
		payload[1] = pkt.Extension
		for i, v := range pkt.Classic {
			binary.BigEndian.PutUint32(payload[2+i*4:], v)
		}
		for i, v := range pkt.Pro {
			binary.BigEndian.PutUint32(payload[14+i*4:], v)
		}
	}

	return buf
}

// DecodeUDPPacket deserializes wire bytes into a UDPPacket.
func DecodeUDPPacket(data []byte) (*UDPPacket, error) {
	if len(data) < UDPHeaderSize {
		return nil, errors.New("udp: packet too short")
	}

	pkt := &UDPPacket{
		Type:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	payload := data[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketAux:
		if len(payload) < UDPAuxPayloadSize {
			return nil, errors.New("udp: aux payload too short")
		}
		pkt.Channel = payload[0]
		pkt.Extension = payload[1]
		for i := range pkt.Classic {
			pkt.Classic[i] = binary.BigEndian.Uint32(payload[2+i*4:])
		}
		for i := range pkt.Pro {
			pkt.Pro[i] = binary.BigEndian.Uint32(payload[14+i*4:])
		}
	case UDPPacketRegister, UDPPacketHeartbeat, UDPPacketAck:
		// no payload
	default:
		return nil, errors.New("udp: unknown packet type")
	}

	return pkt, nil
}
