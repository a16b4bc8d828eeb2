package main

import (
	"context"
	"net/netip"

	"github.com/spf13/cobra"
	"github.com/vitalvas/mqttsn"
	"github.com/vitalvas/mqttsn/extensions/config"
)

func newGatewayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run an MQTT-SN gateway",
		Long: `Run an MQTT-SN gateway on a UDP socket.

The gateway advertises itself, answers gateway searches, and keeps client,
topic and subscription state in memory.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(flags)
			if err != nil {
				return err
			}

			id, err := gatewayID(rt.cfg, rt.transport.LocalAddr())
			if err != nil {
				return err
			}

			gw := mqttsn.NewGateway(rt.cfg.GatewayOptions(
				mqttsn.WithGatewayID(id),
				mqttsn.WithGatewayTransport(rt.transport),
				mqttsn.WithGatewayLogger(rt.logger),
				mqttsn.WithGatewayMetrics(rt.metrics),
				mqttsn.OnPublish(func(from netip.AddrPort, msg *mqttsn.Message) {
					rt.logger.Debug("publish", mqttsn.LogFields{
						mqttsn.LogFieldPeer:  from.String(),
						mqttsn.LogFieldTopic: msg.Topic,
						mqttsn.LogFieldQoS:   msg.QoS,
					})
				}),
			)...)

			rt.logger.Info("gateway listening", mqttsn.LogFields{
				"addr":                   rt.transport.LocalAddr().String(),
				mqttsn.LogFieldGatewayID: gw.ID(),
			})

			return rt.serve(func(ctx context.Context) error {
				return gw.Serve(ctx)
			})
		},
	}
}

// gatewayID returns the configured gateway id. Without one, the id comes
// from an allocator seeded with the listening port, so gateways sharing a
// host on different ports advertise different ids.
func gatewayID(cfg *config.File, local netip.AddrPort) (byte, error) {
	if cfg.Gateway.ID > 0 {
		return byte(cfg.Gateway.ID), nil
	}
	return mqttsn.NewGatewayIDAllocator(byte(local.Port())).Next()
}
