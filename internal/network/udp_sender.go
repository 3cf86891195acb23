package network

import (
	"log"
	"net"
	"sync/atomic"
	"time"

	"padbridge/internal/input"
	"padbridge/internal/protocol"
)

// UDPSender is the feeder side: it streams auxiliary controller readings to a
// bridge's UDPReceiver.
type UDPSender struct {
	bridgeAddr string // bridge address in "ip:port" format
	conn       *net.UDPConn
	remote     *net.UDPAddr
	seq        uint32 // atomic, monotonically increasing
	done       chan struct{}
}

// NewUDPSender creates a sender for the bridge at bridgeAddr ("ip:port")
func NewUDPSender(bridgeAddr string) *UDPSender {
	return &UDPSender{
		bridgeAddr: bridgeAddr,
		done:       make(chan struct{}),
	}
}

// Probe tests whether UDP connectivity to the bridge is available.
// It sends register packets and waits for an Ack response.
func (s *UDPSender) Probe() bool {
	remote, err := net.ResolveUDPAddr("udp", s.bridgeAddr)
	if err != nil {
		log.Printf("UDP Probe: failed to resolve bridge: %v", err)
		return false
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		log.Printf("UDP Probe: failed to bind: %v", err)
		return false
	}
	defer conn.Close()

	// Try up to 3 times with 500ms timeout each (total max ~1.5s)
	buf := make([]byte, 64)
	for attempt := 0; attempt < 3; attempt++ {
		pkt := &protocol.UDPPacket{
			Type:      protocol.UDPPacketRegister,
			Timestamp: time.Now().UnixMilli(),
		}
		conn.WriteToUDP(protocol.EncodeUDPPacket(pkt), remote)

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout or error, retry
		}
		resp, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}
		if resp.Type == protocol.UDPPacketAck {
			log.Printf("UDP Probe: bridge replied with Ack (attempt %d), UDP path is open", attempt+1)
			return true
		}
	}

	log.Printf("UDP Probe: no Ack received after 3 attempts, UDP path blocked")
	return false
}

// Start opens a UDP socket and registers with the bridge.
func (s *UDPSender) Start() error {
	remote, err := net.ResolveUDPAddr("udp", s.bridgeAddr)
	if err != nil {
		return err
	}
	s.remote = remote

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return err
	}
	s.conn = conn

	log.Printf("UDP Sender: Streaming from %s to %s", conn.LocalAddr(), s.bridgeAddr)

	s.sendControl(protocol.UDPPacketRegister)
	go s.heartbeatLoop()

	return nil
}

// heartbeatLoop sends periodic heartbeat packets to keep the registration alive.
func (s *UDPSender) heartbeatLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sendControl(protocol.UDPPacketHeartbeat)
		case <-s.done:
			return
		}
	}
}

// sendControl sends a register or heartbeat packet (header-only, no payload).
func (s *UDPSender) sendControl(pktType uint8) {
	pkt := &protocol.UDPPacket{
		Type:      pktType,
		Timestamp: time.Now().UnixMilli(),
	}
	s.conn.WriteToUDP(protocol.EncodeUDPPacket(pkt), s.remote)
}

// Send encodes one reading and sends it to the bridge. Readings carrying a
// press or release edge are sent three times since UDP has no delivery
// guarantee; the receiver drops the copies by sequence number.
func (s *UDPSender) Send(ch input.Channel, st input.AuxStatus) {
	pkt := &protocol.UDPPacket{
		Type:      protocol.UDPPacketAux,
		Seq:       atomic.AddUint32(&s.seq, 1),
		Timestamp: time.Now().UnixMilli(),
		Channel:   uint8(ch),
		Extension: uint8(st.Extension),
		Classic:   [3]uint32{st.Classic.Hold, st.Classic.Trigger, st.Classic.Release},
		Pro:       [3]uint32{st.Pro.Hold, st.Pro.Trigger, st.Pro.Release},
	}

	redundancy := 1
	if st.Pressed()|st.Released() != 0 {
		redundancy = 3
	}

	data := protocol.EncodeUDPPacket(pkt)
	for i := 0; i < redundancy; i++ {
		s.conn.WriteToUDP(data, s.remote)
	}
}

// Stop shuts down the UDP sender.
func (s *UDPSender) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
