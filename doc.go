// Package mqttsn provides an SDK for implementing MQTT-SN gateways and clients.
//
// This package implements the MQTT For Sensor Networks (MQTT-SN) protocol,
// version 1.2.
//
// # Features
//
//   - All 27 MQTT-SN v1.2 message types with short and long length forms
//   - Gateway discovery with ADVERTISE, SEARCHGW and GWINFO
//   - Topic registration and QoS 0, 1, 2 message flows
//   - Will handshake and will updates
//   - Keep-alive supervision and sleeping clients
//   - Transport: UDP with broadcast
//   - Pluggable logging and metrics
//
// # Packet Types
//
// Every message type has its own struct, e.g. ConnectPacket, RegisterPacket,
// PublishPacket or WillTopicUpdPacket. One datagram carries one frame:
//
//	// Decode a datagram
//	pkt, err := mqttsn.ReadPacket(datagram)
//
//	// Encode a packet
//	frame, err := mqttsn.MarshalPacket(&mqttsn.PingreqPacket{})
//
// Frames of 256 octets or more use the three-octet length form automatically.
//
// # Gateway
//
// A Gateway owns a Transport and runs until its context is canceled:
//
//	transport, _ := mqttsn.ListenUDP(":1883")
//	gw := mqttsn.NewGateway(
//	    mqttsn.WithGatewayTransport(transport),
//	    mqttsn.WithGatewayID(1),
//	    mqttsn.OnPublish(func(from netip.AddrPort, m *mqttsn.Message) { ... }),
//	)
//	err := gw.Serve(ctx)
//
// The gateway keeps a client record per endpoint, assigns topic ids, fans
// publishes out to subscribers and retransmits unacknowledged deliveries.
// Hosts running several gateways take ids from a GatewayIDAllocator.
//
// # Client
//
// A Client searches for a gateway unless one is configured, connects and
// keeps the session alive:
//
//	client := mqttsn.NewClient(
//	    mqttsn.WithTransport(transport),
//	    mqttsn.WithClientID("sensor-1"),
//	    mqttsn.WithKeepAlive(60*time.Second),
//	    mqttsn.OnMessage(func(m *mqttsn.Message) { ... }),
//	)
//	go client.Run(ctx)
//
// Lifecycle events arrive at the OnEvent handler and match sentinels with
// errors.Is:
//
//	mqttsn.OnEvent(func(c *mqttsn.Client, event error) {
//	    if errors.Is(event, mqttsn.ErrConnected) {
//	        go c.Subscribe("alerts", mqttsn.QoS1)
//	    }
//	})
//
// A client given a Fixture registers each of its topics and publishes one of
// its messages on every publish interval.
//
// # Topic Matching
//
// MQTT wildcards are supported for filters used by the router extension:
//
//	err := mqttsn.ValidateTopicFilter("sensors/+/status")
//	matched := mqttsn.TopicMatch("sensors/#", "sensors/room1/temp")
//
// # Metrics
//
// Engines report frame counters and client gauges through Metrics:
//
//	// For testing
//	metrics := mqttsn.NewMemoryMetrics()
//
//	gw := mqttsn.NewGateway(mqttsn.WithGatewayMetrics(metrics))
//
// The prommetrics extension exports the same metrics to Prometheus.
//
// # Logging
//
// Implement the Logger interface for structured logging:
//
//	logger := mqttsn.NewStdLogger(os.Stdout, mqttsn.LogLevelInfo)
//	logger.Info("gateway online", mqttsn.LogFields{"gateway_id": 1})
package mqttsn
