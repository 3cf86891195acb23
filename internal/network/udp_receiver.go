package network

import (
	"log"
	"net"
	"sync"
	"time"

	"padbridge/internal/input"
	"padbridge/internal/protocol"
)

// UDPReceiver is the bridge-side auxiliary controller source. Remote feeders
// register with it and stream binary readings, which it exposes through the
// input.AuxSource interface.
type UDPReceiver struct {
	port int
	conn *net.UDPConn
	done chan struct{}

	mu        sync.Mutex
	peers     map[string]*udpPeer
	latest    map[input.Channel]auxReading
	callbacks map[input.Channel]input.SamplingCallback
}

type udpPeer struct {
	addr     *net.UDPAddr
	lastSeen time.Time
	dedup    seqDedup
}

type auxReading struct {
	status  input.AuxStatus
	updated time.Time
}

// seqDedup tracks recently seen sequence numbers to discard redundant packets.
// Uses a fixed-size ring buffer, no allocation, O(1) lookup.
type seqDedup struct {
	ring [512]uint32
	used [512]bool
	pos  int
	seen map[uint32]struct{}
}

func newSeqDedup() seqDedup {
	return seqDedup{seen: make(map[uint32]struct{}, 512)}
}

func (d *seqDedup) isDuplicate(seq uint32) bool {
	if _, ok := d.seen[seq]; ok {
		return true
	}
	// Evict oldest entry
	if d.used[d.pos] {
		delete(d.seen, d.ring[d.pos])
	}
	d.ring[d.pos] = seq
	d.used[d.pos] = true
	d.seen[seq] = struct{}{}
	d.pos = (d.pos + 1) % len(d.ring)
	return false
}

// NewUDPReceiver creates a receiver listening on port (0 picks a free port)
func NewUDPReceiver(port int) *UDPReceiver {
	return &UDPReceiver{
		port:      port,
		done:      make(chan struct{}),
		peers:     make(map[string]*udpPeer),
		latest:    make(map[input.Channel]auxReading),
		callbacks: make(map[input.Channel]input.SamplingCallback),
	}
}

// Start binds the UDP socket and begins receiving.
func (r *UDPReceiver) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: r.port})
	if err != nil {
		return err
	}
	r.conn = conn

	// 64 KB read buffer for bursts of redundant packets
	conn.SetReadBuffer(1 << 16)

	log.Printf("UDP Receiver: Listening on %s", conn.LocalAddr())

	go r.readLoop()
	go r.cleanupLoop()

	return nil
}

// Addr returns the bound address, or nil before Start
func (r *UDPReceiver) Addr() *net.UDPAddr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Read returns the most recent reading for a channel
func (r *UDPReceiver) Read(ch input.Channel) (input.AuxStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.latest[ch]
	if !ok {
		return input.AuxStatus{}, input.ErrNoController
	}
	return rd.status, nil
}

// SetSamplingCallback registers the function called for every new reading
func (r *UDPReceiver) SetSamplingCallback(ch input.Channel, cb input.SamplingCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb == nil {
		delete(r.callbacks, ch)
		return
	}
	r.callbacks[ch] = cb
}

// readLoop reads and dispatches incoming packets.
func (r *UDPReceiver) readLoop() {
	buf := make([]byte, 64)
	for {
		n, remoteAddr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
				continue
			}
		}

		pkt, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}

		r.handlePacket(pkt, remoteAddr)
	}
}

func (r *UDPReceiver) handlePacket(pkt *protocol.UDPPacket, from *net.UDPAddr) {
	key := from.String()

	switch pkt.Type {
	case protocol.UDPPacketRegister:
		r.touch(key, from)

		// Reply with Ack so the feeder can confirm UDP connectivity
		ack := &protocol.UDPPacket{
			Type:      protocol.UDPPacketAck,
			Timestamp: time.Now().UnixMilli(),
		}
		r.conn.WriteToUDP(protocol.EncodeUDPPacket(ack), from)

	case protocol.UDPPacketHeartbeat:
		r.touch(key, from)

	case protocol.UDPPacketAux:
		r.mu.Lock()
		peer := r.touchLocked(key, from)
		if peer.dedup.isDuplicate(pkt.Seq) {
			r.mu.Unlock()
			return
		}
		ch := input.Channel(pkt.Channel)
		r.latest[ch] = auxReading{status: statusFromPacket(pkt), updated: time.Now()}
		cb := r.callbacks[ch]
		r.mu.Unlock()

		if cb != nil {
			cb(ch)
		}
	}
}

func (r *UDPReceiver) touch(key string, addr *net.UDPAddr) {
	r.mu.Lock()
	r.touchLocked(key, addr)
	r.mu.Unlock()
}

func (r *UDPReceiver) touchLocked(key string, addr *net.UDPAddr) *udpPeer {
	peer, ok := r.peers[key]
	if !ok {
		log.Printf("UDP Receiver: Feeder registered from %s", key)
		peer = &udpPeer{addr: addr, dedup: newSeqDedup()}
		r.peers[key] = peer
	}
	peer.lastSeen = time.Now()
	return peer
}

// cleanupLoop removes feeders and readings that have gone quiet.
func (r *UDPReceiver) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.expire(time.Now().Add(-30 * time.Second))
		case <-r.done:
			return
		}
	}
}

func (r *UDPReceiver) expire(before time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, peer := range r.peers {
		if peer.lastSeen.Before(before) {
			log.Printf("UDP Receiver: Removing stale feeder %s", key)
			delete(r.peers, key)
		}
	}
	for ch, rd := range r.latest {
		if rd.updated.Before(before) {
			delete(r.latest, ch)
		}
	}
}

// HasFeeders returns true if at least one feeder is registered.
func (r *UDPReceiver) HasFeeders() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) > 0
}

// Stop shuts down the UDP receiver.
func (r *UDPReceiver) Stop() {
	close(r.done)
	if r.conn != nil {
		r.conn.Close()
	}
}

func statusFromPacket(pkt *protocol.UDPPacket) input.AuxStatus {
	return input.AuxStatus{
		Extension: input.ExtensionType(pkt.Extension),
		Classic:   input.ButtonMasks{Hold: pkt.Classic[0], Trigger: pkt.Classic[1], Release: pkt.Classic[2]},
		Pro:       input.ButtonMasks{Hold: pkt.Pro[0], Trigger: pkt.Pro[1], Release: pkt.Pro[2]},
	}
}
