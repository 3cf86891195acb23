package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"padbridge/internal/buttons"
	"padbridge/internal/input"
	"padbridge/internal/protocol"
)

func TestSeqDedup(t *testing.T) {
	d := newSeqDedup()

	if d.isDuplicate(1) {
		t.Error("Expected first sighting of seq 1 to be new")
	}
	if !d.isDuplicate(1) {
		t.Error("Expected second sighting of seq 1 to be a duplicate")
	}

	// Push seq 1 out of the ring
	for seq := uint32(2); seq < 2+uint32(len(d.ring)); seq++ {
		d.isDuplicate(seq)
	}
	if d.isDuplicate(1) {
		t.Error("Expected seq 1 to be forgotten after the ring wrapped")
	}
}

func TestSeqDedupForgetsZero(t *testing.T) {
	d := newSeqDedup()

	if d.isDuplicate(0) {
		t.Error("Expected first sighting of seq 0 to be new")
	}
	if !d.isDuplicate(0) {
		t.Error("Expected second sighting of seq 0 to be a duplicate")
	}

	for seq := uint32(1); seq <= uint32(len(d.ring)); seq++ {
		d.isDuplicate(seq)
	}
	if d.isDuplicate(0) {
		t.Error("Expected seq 0 to be forgotten after the ring wrapped")
	}
	if len(d.seen) != len(d.ring) {
		t.Errorf("Expected %d tracked sequences, got %d", len(d.ring), len(d.seen))
	}
}

func startReceiver(t *testing.T) (*UDPReceiver, string) {
	t.Helper()
	r := NewUDPReceiver(0)
	if err := r.Start(); err != nil {
		t.Fatalf("Failed to start receiver: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, fmt.Sprintf("127.0.0.1:%d", r.Addr().Port)
}

func TestUDPReceiverDeliversReadings(t *testing.T) {
	r, addr := startReceiver(t)

	got := make(chan input.Channel, 8)
	r.SetSamplingCallback(1, func(ch input.Channel) { got <- ch })

	s := NewUDPSender(addr)
	if !s.Probe() {
		t.Fatal("Expected probe to receive an Ack")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start sender: %v", err)
	}
	defer s.Stop()

	want := input.AuxStatus{
		Extension: input.ExtensionPro,
		Pro: input.ButtonMasks{
			Hold:    buttons.ProA,
			Trigger: buttons.ProA,
		},
	}
	s.Send(1, want)

	select {
	case ch := <-got:
		if ch != 1 {
			t.Errorf("Expected callback for channel 1, got %d", ch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for sampling callback")
	}

	// The redundant copies must not trigger the callback again
	select {
	case <-got:
		t.Error("Expected duplicate packets to be dropped")
	case <-time.After(200 * time.Millisecond):
	}

	st, err := r.Read(1)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if st != want {
		t.Errorf("Expected %+v, got %+v", want, st)
	}

	if !r.HasFeeders() {
		t.Error("Expected the sender to be registered")
	}
}

func TestUDPReceiverUnknownChannel(t *testing.T) {
	r := NewUDPReceiver(0)
	if _, err := r.Read(3); !errors.Is(err, input.ErrNoController) {
		t.Errorf("Expected ErrNoController, got %v", err)
	}
}

func TestUDPReceiverExpire(t *testing.T) {
	r := NewUDPReceiver(0)
	from := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	r.handlePacket(&protocol.UDPPacket{Type: protocol.UDPPacketAux, Seq: 1, Channel: 0}, from)

	if _, err := r.Read(0); err != nil {
		t.Fatalf("Expected a reading, got %v", err)
	}

	r.expire(time.Now().Add(time.Minute))

	if r.HasFeeders() {
		t.Error("Expected stale feeder to be removed")
	}
	if _, err := r.Read(0); !errors.Is(err, input.ErrNoController) {
		t.Errorf("Expected stale reading to be dropped, got %v", err)
	}
}

func TestUDPReceiverDedupIsPerFeeder(t *testing.T) {
	r := NewUDPReceiver(0)
	calls := 0
	r.SetSamplingCallback(0, func(input.Channel) { calls++ })

	a := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	b := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4001}
	pkt := &protocol.UDPPacket{Type: protocol.UDPPacketAux, Seq: 7}

	r.handlePacket(pkt, a)
	r.handlePacket(pkt, a)
	r.handlePacket(pkt, b)

	if calls != 2 {
		t.Errorf("Expected 2 callbacks, got %d", calls)
	}
}

func TestUDPLogWriter(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer conn.Close()

	w, err := NewUDPLogWriter(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to create log writer: %v", err)
	}
	defer w.Close()

	n, err := w.Write([]byte("Bridge: hello\n"))
	if err != nil || n != 14 {
		t.Fatalf("Expected 14 bytes written, got %d (%v)", n, err)
	}

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err = conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("Failed to read datagram: %v", err)
	}
	if string(buf[:n]) != "Bridge: hello\n" {
		t.Errorf("Expected log line, got %q", buf[:n])
	}
}

func TestProbeHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case "/api/status":
			json.NewEncoder(w).Encode(protocol.StatusPayload{
				Application: "0005001010047100",
				Mirror:      true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	host, ok := ProbeHost(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if !ok {
		t.Fatal("Expected host to be found")
	}
	if host.Application != "0005001010047100" || !host.Mirror || host.Redirect {
		t.Errorf("Unexpected host %+v", host)
	}
}

func TestProbeHostNotBridge(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, ok := ProbeHost(context.Background(), strings.TrimPrefix(srv.URL, "http://")); ok {
		t.Error("Expected a host without /health to be skipped")
	}
}
