package main

import (
	"net"
	"net/netip"
)

// Socket buffer sizes, grounded in the corpus's own high-throughput UDP
// listener (see DESIGN.md) — generous enough to absorb a receive-side
// burst of detached workers without kernel-level datagram drops.
const (
	socketRecvBufferSize = 1 << 20
	socketSendBufferSize = 1 << 20
)

// Endpoint is the one shared UDP socket (§4.1). A single socket serves
// every sender; the transport guarantees datagrams are never interleaved.
type Endpoint struct {
	conn *net.UDPConn
}

// newEndpoint binds a UDP socket on addr (host:port, or ":12000" for all
// interfaces on the default port).
func newEndpoint(addr string) (*Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(socketRecvBufferSize)
	_ = conn.SetWriteBuffer(socketSendBufferSize)
	return &Endpoint{conn: conn}, nil
}

// recv blocks for the next datagram, returning its payload length and the
// sender's address. buf must be at least bufferSize bytes.
func (e *Endpoint) recv(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := e.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, addr, nil
}

// sendTo writes data to addr in one datagram. Implements sendFunc.
func (e *Endpoint) sendTo(addr netip.AddrPort, data []byte) error {
	_, err := e.conn.WriteToUDPAddrPort(data, addr)
	return err
}

// close unblocks any in-flight recv, per §5's cooperative-shutdown rule.
func (e *Endpoint) close() error {
	return e.conn.Close()
}
