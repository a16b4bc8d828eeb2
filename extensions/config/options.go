package config

import (
	"fmt"
	"net/netip"

	"github.com/vitalvas/mqttsn"
)

// UDPOptions returns the transport options of f.
func (f *File) UDPOptions() []mqttsn.UDPOption {
	opts := []mqttsn.UDPOption{mqttsn.WithRadius(f.Radius)}
	if f.BroadcastAddress != "" {
		opts = append(opts, mqttsn.WithBroadcastAddress(f.BroadcastAddress))
	}
	if f.BroadcastPort > 0 {
		opts = append(opts, mqttsn.WithBroadcastPort(f.BroadcastPort))
	}
	return opts
}

// GatewayOptions translates the gateway section into engine options.
// Options in extra are applied last.
func (f *File) GatewayOptions(extra ...mqttsn.GatewayOption) []mqttsn.GatewayOption {
	g := f.Gateway

	opts := []mqttsn.GatewayOption{
		mqttsn.WithStateIntervals(g.OnlineInterval.Std(), g.OfflineInterval.Std()),
		mqttsn.WithAdvertiseInterval(g.AdvertiseInterval.Std()),
		mqttsn.WithActiveClientsCheckInterval(g.ActiveClientsCheckInterval.Std()),
		mqttsn.WithAsleepClientsCheckInterval(g.AsleepClientsCheckInterval.Std()),
		mqttsn.WithClientsClearInterval(g.ClientsClearInterval.Std()),
		mqttsn.WithMaximumInactivityTime(g.MaximumInactivityTime.Std()),
		mqttsn.WithRetransmission(g.RetransmissionInterval.Std(), g.MaxRetries),
		mqttsn.WithMaximumClients(g.MaximumClients),
		mqttsn.WithGatewayStrictMode(g.Strict),
	}
	if g.ID > 0 {
		opts = append(opts, mqttsn.WithGatewayID(byte(g.ID)))
	}
	if g.PublishRate > 0 {
		opts = append(opts, mqttsn.WithPublishRateLimit(g.PublishRate, g.PublishBurst))
	}

	return append(opts, extra...)
}

// ClientOptions translates the client section into engine options.
// Options in extra are applied last.
func (f *File) ClientOptions(extra ...mqttsn.Option) ([]mqttsn.Option, error) {
	c := f.Client

	opts := []mqttsn.Option{
		mqttsn.WithKeepAlive(c.KeepAlive.Std()),
		mqttsn.WithCleanSession(c.CleanSession),
		mqttsn.WithSearchGateway(c.SearchInterval.Std(), byte(c.SearchRadius)),
		mqttsn.WithRetransmissionInterval(c.RetransmissionInterval.Std()),
		mqttsn.WithDefaultMaxAttempts(c.MaxAttempts),
		mqttsn.WithWaitingInterval(c.WaitingInterval.Std()),
		mqttsn.WithPublishSchedule(c.RegistrationInterval.Std(), c.PublishInterval.Std()),
		mqttsn.WithStrictMode(c.Strict),
	}

	if c.ID != "" {
		opts = append(opts, mqttsn.WithClientID(c.ID))
	}

	if c.Gateway != "" {
		addr, err := netip.ParseAddrPort(c.Gateway)
		if err != nil {
			return nil, fmt.Errorf("client gateway: %w", err)
		}
		opts = append(opts, mqttsn.WithGateway(addr))
	}

	if c.Will != nil {
		opts = append(opts, mqttsn.WithWill(c.Will.Topic, []byte(c.Will.Message), c.Will.Retain, byte(c.Will.QoS)))
	}

	if fixture := c.Fixture.Fixture(); fixture != nil {
		opts = append(opts, mqttsn.WithFixture(fixture))
	}

	return append(opts, extra...), nil
}
