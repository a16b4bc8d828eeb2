package mqttsn

import "net/netip"

// MaxDatagramSize is the receive buffer size used by transports.
const MaxDatagramSize = MaxFrameLength

// Datagram is one received frame and its origin.
type Datagram struct {
	Payload []byte
	From    netip.AddrPort
	// Broadcast is set when the datagram was addressed to a broadcast address.
	Broadcast bool
}

// Transport moves datagrams for one engine.
// Receive is called from a single reader goroutine; Send and Broadcast are
// called from the engine loop.
type Transport interface {
	// Receive blocks until a datagram arrives or the transport is closed.
	Receive() (Datagram, error)

	// Send writes payload to one peer.
	Send(payload []byte, to netip.AddrPort) error

	// Broadcast writes payload to the broadcast address.
	Broadcast(payload []byte) error

	// LocalAddr returns the bound address.
	LocalAddr() netip.AddrPort

	// Close unblocks Receive and releases the socket.
	Close() error
}
