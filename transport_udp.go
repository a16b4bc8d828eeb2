package mqttsn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// UDPOption configures a UDPTransport.
type UDPOption func(*udpConfig)

type udpConfig struct {
	broadcastAddr string
	broadcastPort int
	radius        int
}

func defaultUDPConfig() *udpConfig {
	return &udpConfig{
		broadcastAddr: "255.255.255.255",
	}
}

// WithBroadcastAddress sets the address used for ADVERTISE, GWINFO and SEARCHGW.
func WithBroadcastAddress(addr string) UDPOption {
	return func(c *udpConfig) {
		c.broadcastAddr = addr
	}
}

// WithBroadcastPort sets the port broadcasts are sent to.
// Defaults to the local port.
func WithBroadcastPort(port int) UDPOption {
	return func(c *udpConfig) {
		c.broadcastPort = port
	}
}

// WithRadius sets the IP TTL of outgoing datagrams. Zero keeps the system default.
func WithRadius(radius int) UDPOption {
	return func(c *udpConfig) {
		c.radius = radius
	}
}

// UDPTransport is a Transport over an IPv4 UDP socket with broadcast enabled.
type UDPTransport struct {
	conn      *net.UDPConn
	pc        *ipv4.PacketConn
	local     netip.AddrPort
	broadcast netip.AddrPort
	self      map[netip.Addr]struct{}
}

// ListenUDP binds a UDP socket on address, e.g. ":1883".
func ListenUDP(address string, opts ...UDPOption) (*UDPTransport, error) {
	cfg := defaultUDPConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	packetConn, err := lc.ListenPacket(context.Background(), "udp4", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}
	conn := packetConn.(*net.UDPConn)

	local := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	bcastIP, err := netip.ParseAddr(cfg.broadcastAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast address: %w", err)
	}
	bcastPort := uint16(cfg.broadcastPort)
	if bcastPort == 0 {
		bcastPort = local.Port()
	}

	pc := ipv4.NewPacketConn(conn)
	if cfg.radius > 0 {
		if err := pc.SetTTL(cfg.radius); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set ttl: %w", err)
		}
	}
	// Not every platform reports the destination; Broadcast stays false there.
	_ = pc.SetControlMessage(ipv4.FlagDst, true)

	return &UDPTransport{
		conn:      conn,
		pc:        pc,
		local:     local,
		broadcast: netip.AddrPortFrom(bcastIP, bcastPort),
		self:      interfaceAddrs(),
	}, nil
}

func interfaceAddrs() map[netip.Addr]struct{} {
	out := make(map[netip.Addr]struct{})
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return out
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if addr, ok := netip.AddrFromSlice(ipNet.IP); ok {
				out[addr.Unmap()] = struct{}{}
			}
		}
	}
	return out
}

// Receive blocks until a datagram from another endpoint arrives.
// Our own broadcasts looping back are skipped.
func (t *UDPTransport) Receive() (Datagram, error) {
	bufp := getDatagramBuffer()
	defer putDatagramBuffer(bufp)

	buf := *bufp
	for {
		n, cm, src, err := t.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return Datagram{}, ErrTransportClosed
			}
			return Datagram{}, err
		}

		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		from := udpAddr.AddrPort()
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())

		if t.isSelf(from) {
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		return Datagram{
			Payload:   payload,
			From:      from,
			Broadcast: cm != nil && t.isBroadcastDst(cm.Dst),
		}, nil
	}
}

func (t *UDPTransport) isSelf(from netip.AddrPort) bool {
	if from.Port() != t.local.Port() {
		return false
	}
	_, ok := t.self[from.Addr()]
	return ok
}

func (t *UDPTransport) isBroadcastDst(dst net.IP) bool {
	if dst == nil {
		return false
	}
	return dst.Equal(net.IPv4bcast) || dst.Equal(net.IP(t.broadcast.Addr().AsSlice()))
}

// Send writes payload to one peer.
func (t *UDPTransport) Send(payload []byte, to netip.AddrPort) error {
	_, err := t.conn.WriteToUDPAddrPort(payload, to)
	return err
}

// Broadcast writes payload to the broadcast address.
func (t *UDPTransport) Broadcast(payload []byte) error {
	return t.Send(payload, t.broadcast)
}

// LocalAddr returns the bound address.
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	return t.local
}

// Close closes the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
