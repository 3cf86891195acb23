package network

import "net"

// DefaultLogAddr is the broadcast address log lines are sent to
const DefaultLogAddr = "255.255.255.255:4405"

// UDPLogWriter sends every write as one UDP datagram. It is meant to be
// combined with the regular log output through io.MultiWriter.
type UDPLogWriter struct {
	conn net.Conn
}

// NewUDPLogWriter opens a UDP socket towards addr
func NewUDPLogWriter(addr string) (*UDPLogWriter, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPLogWriter{conn: conn}, nil
}

// Write never fails so logging keeps working without a listener
func (w *UDPLogWriter) Write(p []byte) (int, error) {
	w.conn.Write(p)
	return len(p), nil
}

// Close closes the socket
func (w *UDPLogWriter) Close() error {
	return w.conn.Close()
}
