package mqttsn

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayHarness drives a gateway directly from the test goroutine with a
// controlled clock.
type gatewayHarness struct {
	t         *testing.T
	gw        *Gateway
	transport *fakeTransport
	metrics   *MemoryMetrics
	clock     time.Time
	states    []ClientInfo
	published []*Message
}

func newGatewayHarness(t *testing.T, opts ...GatewayOption) *gatewayHarness {
	t.Helper()

	h := &gatewayHarness{
		t:         t,
		transport: newFakeTransport("192.168.1.1:1883"),
		metrics:   NewMemoryMetrics(),
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	base := []GatewayOption{
		WithGatewayTransport(h.transport),
		WithGatewayMetrics(h.metrics),
		WithGatewayID(9),
		OnClientState(func(info ClientInfo) { h.states = append(h.states, info) }),
		OnPublish(func(_ netip.AddrPort, msg *Message) { h.published = append(h.published, msg) }),
	}

	h.gw = NewGateway(append(base, opts...)...)
	h.gw.now = func() time.Time { return h.clock }
	h.gw.goOnline()
	t.Cleanup(h.gw.loop.timers.cancelAll)

	h.transport.reset()
	return h
}

func (h *gatewayHarness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *gatewayHarness) deliver(from netip.AddrPort, p Packet) error {
	h.t.Helper()

	data, err := MarshalPacket(p)
	require.NoError(h.t, err)
	return h.gw.handleDatagram(Datagram{Payload: data, From: from})
}

func (h *gatewayHarness) deliverBroadcast(from netip.AddrPort, p Packet) error {
	h.t.Helper()

	data, err := MarshalPacket(p)
	require.NoError(h.t, err)
	return h.gw.handleDatagram(Datagram{Payload: data, From: from, Broadcast: true})
}

func (h *gatewayHarness) deliverRaw(from netip.AddrPort, data []byte) error {
	return h.gw.handleDatagram(Datagram{Payload: data, From: from})
}

// take returns the frames sent to peer since the last call.
func (h *gatewayHarness) take(peer netip.AddrPort) []Packet {
	h.t.Helper()
	return h.transport.take(h.t, peer)
}

// takeOne returns the single frame sent to peer.
func (h *gatewayHarness) takeOne(peer netip.AddrPort) Packet {
	h.t.Helper()

	packets := h.take(peer)
	require.Len(h.t, packets, 1, "frames sent to %s", peer)
	return packets[0]
}

func (h *gatewayHarness) connect(peer netip.AddrPort, clientID string, keepAlive uint16) {
	h.t.Helper()

	require.NoError(h.t, h.deliver(peer, &ConnectPacket{
		CleanSession: true,
		ProtocolID:   ProtocolID,
		Duration:     keepAlive,
		ClientID:     clientID,
	}))
	assert.Equal(h.t, &ConnackPacket{ReturnCode: Accepted}, h.takeOne(peer))
}

func (h *gatewayHarness) register(peer netip.AddrPort, name string) uint16 {
	h.t.Helper()

	require.NoError(h.t, h.deliver(peer, &RegisterPacket{MsgID: 1, TopicName: name}))
	regack, ok := h.takeOne(peer).(*RegackPacket)
	require.True(h.t, ok)
	require.Equal(h.t, Accepted, regack.ReturnCode)
	return regack.TopicID
}

func (h *gatewayHarness) subscribe(peer netip.AddrPort, name string, qos byte) uint16 {
	h.t.Helper()

	require.NoError(h.t, h.deliver(peer, &SubscribePacket{QoS: qos, MsgID: 2, TopicName: name}))
	suback, ok := h.takeOne(peer).(*SubackPacket)
	require.True(h.t, ok)
	require.Equal(h.t, Accepted, suback.ReturnCode)
	require.Equal(h.t, qos, suback.QoS)
	return suback.TopicID
}

func (h *gatewayHarness) dropped(reason string) float64 {
	return h.metrics.CounterValue(MetricPacketsDropped, MetricLabels{LabelReason: reason})
}

func (h *gatewayHarness) state(peer netip.AddrPort) ClientState {
	h.t.Helper()

	rec, ok := h.gw.clients[peer]
	require.True(h.t, ok, "no record for %s", peer)
	return rec.State
}

func TestGatewayAdvertiseWhenOnline(t *testing.T) {
	transport := newFakeTransport("192.168.1.1:1883")
	gw := NewGateway(WithGatewayTransport(transport), WithGatewayID(4), WithAdvertiseInterval(15*time.Minute))
	t.Cleanup(gw.loop.timers.cancelAll)

	gw.goOnline()

	assert.Equal(t, []Packet{&AdvertisePacket{GatewayID: 4, Duration: 900}}, transport.broadcastPackets(t))
	assert.Equal(t, byte(4), gw.ID())
	assert.True(t, gw.loop.timers.active(timerAdvertise))
	assert.True(t, gw.loop.timers.active(timerRetransmit))
	assert.False(t, gw.loop.timers.active(timerGatewayState))
}

func TestGatewaySearch(t *testing.T) {
	h := newGatewayHarness(t)

	t.Run("broadcast search", func(t *testing.T) {
		require.NoError(t, h.deliverBroadcast(peerA, &SearchGwPacket{Radius: 1}))
		assert.Equal(t, []Packet{&GwInfoPacket{GatewayID: 9}}, h.transport.broadcastPackets(t))
		assert.Empty(t, h.take(peerA))
	})

	t.Run("unicast search", func(t *testing.T) {
		h.transport.reset()

		require.NoError(t, h.deliver(peerA, &SearchGwPacket{Radius: 1}))
		assert.Equal(t, &GwInfoPacket{GatewayID: 9}, h.takeOne(peerA))
		assert.Empty(t, h.transport.broadcastPackets(t))
	})
}

func TestGatewayIgnoresOtherGateways(t *testing.T) {
	h := newGatewayHarness(t)

	require.NoError(t, h.deliver(peerA, &AdvertisePacket{GatewayID: 2, Duration: 60}))
	require.NoError(t, h.deliver(peerA, &GwInfoPacket{GatewayID: 2}))
	assert.Empty(t, h.take(peerA))
	assert.Empty(t, h.transport.broadcastPackets(t))
}

func TestGatewayDrops(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.gw.state = GatewayOffline

		require.NoError(t, h.deliverBroadcast(peerA, &SearchGwPacket{}))
		assert.Empty(t, h.transport.broadcastPackets(t))
		assert.InDelta(t, 1, h.dropped(dropOffline), 0)
	})

	t.Run("own address", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliverBroadcast(h.transport.LocalAddr(), &SearchGwPacket{}))
		assert.Empty(t, h.transport.broadcastPackets(t))
		assert.InDelta(t, 1, h.dropped(dropSelf), 0)
	})

	t.Run("malformed", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliverRaw(peerA, []byte{0x05, 0x04, 0x00}))
		assert.Empty(t, h.take(peerA))
		assert.InDelta(t, 1, h.dropped(dropMalformed), 0)
	})

	t.Run("unknown peer", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliver(peerA, &RegisterPacket{MsgID: 1, TopicName: "a"}))
		assert.Empty(t, h.take(peerA))
		assert.InDelta(t, 1, h.dropped(dropState), 0)
	})
}

func TestGatewayStateIntervals(t *testing.T) {
	h := newGatewayHarness(t, WithStateIntervals(time.Minute, 30*time.Second))
	require.True(t, h.gw.loop.timers.active(timerGatewayState))

	require.NoError(t, h.gw.handleTimer(timerGatewayState))
	assert.Equal(t, GatewayOffline, h.gw.state)
	assert.False(t, h.gw.loop.timers.active(timerAdvertise))
	assert.True(t, h.gw.loop.timers.active(timerGatewayState))

	require.NoError(t, h.deliverBroadcast(peerA, &SearchGwPacket{}))
	assert.Empty(t, h.transport.broadcastPackets(t))

	require.NoError(t, h.gw.handleTimer(timerGatewayState))
	assert.Equal(t, GatewayOnline, h.gw.state)
	assert.Equal(t, "ONLINE", h.gw.state.String())
	assert.Equal(t, []Packet{&AdvertisePacket{GatewayID: 9, Duration: 60}}, h.transport.broadcastPackets(t))
}

func TestGatewayStartOffline(t *testing.T) {
	transport := newFakeTransport("192.168.1.1:1883")
	gw := NewGateway(WithGatewayTransport(transport), WithStateIntervals(0, time.Minute))
	t.Cleanup(gw.loop.timers.cancelAll)

	gw.start()

	assert.Equal(t, GatewayOffline, gw.state)
	assert.Equal(t, "OFFLINE", gw.state.String())
	assert.True(t, gw.loop.timers.active(timerGatewayState))
	assert.Empty(t, transport.broadcastPackets(t))
}

func TestGatewayConnect(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "sensor-1", 60)

		rec := h.gw.clients[peerA]
		require.NotNil(t, rec)
		assert.Equal(t, ClientActive, rec.State)
		assert.Equal(t, "sensor-1", rec.ClientID)
		assert.Equal(t, time.Minute, rec.KeepAlive)

		require.Len(t, h.states, 1)
		assert.Equal(t, ClientInfo{Addr: peerA, ClientID: "sensor-1", State: ClientActive}, h.states[0])
		assert.InDelta(t, 1, h.metrics.GaugeValue(MetricClients, MetricLabels{LabelState: "ACTIVE"}), 0)
	})

	t.Run("unsupported protocol", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliverRaw(peerA, []byte{0x07, 0x04, 0x04, 0x02, 0x00, 0x3C, 'c'}))
		assert.Equal(t, &ConnackPacket{ReturnCode: RejectedNotSupported}, h.takeOne(peerA))
		assert.Empty(t, h.gw.clients)
	})

	t.Run("table full", func(t *testing.T) {
		h := newGatewayHarness(t, WithMaximumClients(1))
		h.connect(peerA, "a", 60)

		require.NoError(t, h.deliver(peerB, &ConnectPacket{ProtocolID: ProtocolID, ClientID: "b"}))
		assert.Equal(t, &ConnackPacket{ReturnCode: RejectedCongestion}, h.takeOne(peerB))
		assert.Len(t, h.gw.clients, 1)

		// A known endpoint may always reconnect.
		h.connect(peerA, "a", 30)
		assert.Equal(t, 30*time.Second, h.gw.clients[peerA].KeepAlive)
	})

	t.Run("clean session drops subscriptions and will", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "a", 60)
		h.subscribe(peerA, "t", QoS1)
		h.gw.wills.SetTopic(peerA, "will", QoS0, false)

		h.connect(peerA, "a", 60)
		assert.Zero(t, h.gw.subscriptions.Len())
		_, ok := h.gw.wills.Will(peerA)
		assert.False(t, ok)
	})

	t.Run("persistent session keeps subscriptions", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "a", 60)
		h.subscribe(peerA, "t", QoS1)

		require.NoError(t, h.deliver(peerA, &ConnectPacket{ProtocolID: ProtocolID, Duration: 60, ClientID: "a"}))
		assert.Equal(t, &ConnackPacket{ReturnCode: Accepted}, h.takeOne(peerA))
		assert.Equal(t, 1, h.gw.subscriptions.Len())
	})
}

func TestGatewayWillHandshake(t *testing.T) {
	t.Run("topic and message", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliver(peerA, &ConnectPacket{Will: true, CleanSession: true, ProtocolID: ProtocolID, Duration: 60, ClientID: "a"}))
		assert.Equal(t, &WillTopicReqPacket{}, h.takeOne(peerA))

		require.NoError(t, h.deliver(peerA, &WillTopicPacket{QoS: QoS1, Retain: true, Topic: "clients/a"}))
		assert.Equal(t, &WillMsgReqPacket{}, h.takeOne(peerA))

		require.NoError(t, h.deliver(peerA, &WillMsgPacket{Message: []byte("gone")}))
		assert.Equal(t, &ConnackPacket{ReturnCode: Accepted}, h.takeOne(peerA))

		will, ok := h.gw.wills.Will(peerA)
		require.True(t, ok)
		assert.Equal(t, &WillMessage{Topic: "clients/a", Payload: []byte("gone"), QoS: QoS1, Retain: true}, will)
	})

	t.Run("empty topic completes without will", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliver(peerA, &ConnectPacket{Will: true, ProtocolID: ProtocolID, ClientID: "a"}))
		h.take(peerA)

		require.NoError(t, h.deliver(peerA, &WillTopicPacket{}))
		assert.Equal(t, &ConnackPacket{ReturnCode: Accepted}, h.takeOne(peerA))
		_, ok := h.gw.wills.Will(peerA)
		assert.False(t, ok)
	})

	t.Run("out of order message", func(t *testing.T) {
		h := newGatewayHarness(t)

		require.NoError(t, h.deliver(peerA, &ConnectPacket{Will: true, ProtocolID: ProtocolID, ClientID: "a"}))
		h.take(peerA)

		require.NoError(t, h.deliver(peerA, &WillMsgPacket{Message: []byte("early")}))
		assert.Empty(t, h.take(peerA))
		assert.InDelta(t, 1, h.dropped(dropState), 0)
	})

	t.Run("updates", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "a", 60)

		require.NoError(t, h.deliver(peerA, &WillMsgUpdPacket{Message: []byte("x")}))
		assert.Equal(t, &WillMsgRespPacket{ReturnCode: RejectedNotSupported}, h.takeOne(peerA))

		require.NoError(t, h.deliver(peerA, &WillTopicUpdPacket{QoS: QoS2, Topic: "clients/a"}))
		assert.Equal(t, &WillTopicRespPacket{ReturnCode: Accepted}, h.takeOne(peerA))

		require.NoError(t, h.deliver(peerA, &WillMsgUpdPacket{Message: []byte("bye")}))
		assert.Equal(t, &WillMsgRespPacket{ReturnCode: Accepted}, h.takeOne(peerA))

		will, ok := h.gw.wills.Will(peerA)
		require.True(t, ok)
		assert.Equal(t, QoS2, will.QoS)
		assert.Equal(t, []byte("bye"), will.Payload)

		require.NoError(t, h.deliver(peerA, &WillTopicUpdPacket{}))
		h.take(peerA)
		_, ok = h.gw.wills.Will(peerA)
		assert.False(t, ok)
	})
}

func TestGatewayRegister(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "a", 60)
	h.connect(peerB, "b", 60)

	first := h.register(peerA, "sensors/temp")
	assert.Equal(t, uint16(1), first)

	// Every client sees the same id for the same name.
	assert.Equal(t, first, h.register(peerB, "  sensors/temp "))
	assert.Equal(t, uint16(2), h.register(peerA, "sensors/humidity"))

	require.NoError(t, h.deliver(peerA, &RegisterPacket{MsgID: 5, TopicName: "   "}))
	assert.Equal(t, &RegackPacket{MsgID: 5, ReturnCode: RejectedNotSupported}, h.takeOne(peerA))

	assert.InDelta(t, 2, h.metrics.GaugeValue(MetricTopics, nil), 0)
}

func TestGatewaySubscribe(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "a", 60)

	id := h.subscribe(peerA, "t", QoS2)
	qos, ok := h.gw.subscriptions.Find(peerA, id)
	require.True(t, ok)
	assert.Equal(t, QoS2, qos)

	require.NoError(t, h.deliver(peerA, &SubscribePacket{TopicIDType: TopicIDPredefined, MsgID: 3, TopicID: 1}))
	assert.Equal(t, &SubackPacket{MsgID: 3, ReturnCode: RejectedNotSupported}, h.takeOne(peerA))

	require.NoError(t, h.deliver(peerA, &UnsubscribePacket{MsgID: 4, TopicName: "t"}))
	assert.Equal(t, &UnsubackPacket{MsgID: 4}, h.takeOne(peerA))
	assert.Zero(t, h.gw.subscriptions.Len())

	// Unknown topics are acknowledged as well.
	require.NoError(t, h.deliver(peerA, &UnsubscribePacket{MsgID: 5, TopicName: "missing"}))
	assert.Equal(t, &UnsubackPacket{MsgID: 5}, h.takeOne(peerA))
}

func TestGatewayPublishQoS1FanOut(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "sub1", 60)
	h.connect(peerC, "sub0", 60)

	id := h.register(peerA, "sensors/temp")
	h.subscribe(peerB, "sensors/temp", QoS1)
	h.subscribe(peerC, "sensors/temp", QoS0)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 10, Data: []byte("21.5")}))
	assert.Equal(t, &PubackPacket{TopicID: id, MsgID: 10, ReturnCode: Accepted}, h.takeOne(peerA))

	toB, ok := h.takeOne(peerB).(*PublishPacket)
	require.True(t, ok)
	assert.Equal(t, QoS1, toB.QoS)
	assert.Equal(t, id, toB.TopicID)
	assert.NotZero(t, toB.MsgID)
	assert.Equal(t, []byte("21.5"), toB.Data)

	assert.Equal(t, &PublishPacket{QoS: QoS0, TopicID: id, Data: []byte("21.5")}, h.takeOne(peerC))

	assert.Equal(t, 1, h.gw.pending.Len())
	assert.Equal(t, 1, h.gw.pending.StoredLen())
	require.Len(t, h.published, 1)
	assert.Equal(t, "sensors/temp", h.published[0].Topic)

	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, MsgID: toB.MsgID, ReturnCode: Accepted}))
	assert.Zero(t, h.gw.pending.Len())
	assert.Zero(t, h.gw.pending.StoredLen())

	// A second acknowledgement is stale.
	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, MsgID: toB.MsgID, ReturnCode: Accepted}))
	assert.InDelta(t, 1, h.dropped(dropStale), 0)

	assert.InDelta(t, 1, h.metrics.CounterValue(MetricMessagesDispatched, MetricLabels{LabelQoS: "1"}), 0)
	assert.InDelta(t, 1, h.metrics.CounterValue(MetricMessagesDispatched, MetricLabels{LabelQoS: "0"}), 0)
}

func TestGatewayPublishMinimumQoS(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "sub", 60)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS2)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1, Data: []byte("x")}))
	h.take(peerA)

	delivery, ok := h.takeOne(peerB).(*PublishPacket)
	require.True(t, ok)
	assert.Equal(t, QoS1, delivery.QoS)

	req, ok := h.gw.pending.Get(delivery.MsgID)
	require.True(t, ok)
	assert.Equal(t, MsgPUBACK, req.Expected)
}

func TestGatewayPublishSharedStoredMessage(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "b", 60)
	h.connect(peerC, "c", 60)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS1)
	h.subscribe(peerC, "t", QoS1)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1, Data: []byte("x")}))

	toB := h.takeOne(peerB).(*PublishPacket)
	toC := h.takeOne(peerC).(*PublishPacket)
	assert.NotEqual(t, toB.MsgID, toC.MsgID)
	assert.Equal(t, 2, h.gw.pending.Len())
	assert.Equal(t, 1, h.gw.pending.StoredLen())

	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, MsgID: toB.MsgID}))
	assert.Equal(t, 1, h.gw.pending.StoredLen())

	// Acknowledging another subscriber's request id is rejected.
	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, MsgID: toC.MsgID}))
	assert.Equal(t, 1, h.gw.pending.Len())

	require.NoError(t, h.deliver(peerC, &PubackPacket{TopicID: id, MsgID: toC.MsgID}))
	assert.Zero(t, h.gw.pending.StoredLen())
}

func TestGatewayPublishQoS2ExactlyOnce(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "sub", 60)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS2)

	publish := &PublishPacket{QoS: QoS2, TopicID: id, MsgID: 7, Data: []byte("once")}
	require.NoError(t, h.deliver(peerA, publish))
	assert.Equal(t, &PubrecPacket{MsgID: 7}, h.takeOne(peerA))
	assert.Empty(t, h.take(peerB))

	publish.DUP = true
	require.NoError(t, h.deliver(peerA, publish))
	assert.Equal(t, &PubrecPacket{MsgID: 7}, h.takeOne(peerA))
	assert.Equal(t, 1, h.gw.wills.Buffered(peerA))

	require.NoError(t, h.deliver(peerA, &PubrelPacket{MsgID: 7}))
	assert.Equal(t, &PubcompPacket{MsgID: 7}, h.takeOne(peerA))

	delivery, ok := h.takeOne(peerB).(*PublishPacket)
	require.True(t, ok)
	assert.Equal(t, QoS2, delivery.QoS)
	assert.Equal(t, []byte("once"), delivery.Data)

	// A repeated PUBREL is answered but delivers nothing.
	require.NoError(t, h.deliver(peerA, &PubrelPacket{MsgID: 7}))
	assert.Equal(t, &PubcompPacket{MsgID: 7}, h.takeOne(peerA))
	assert.Empty(t, h.take(peerB))
	assert.Len(t, h.published, 1)

	// Outbound QoS 2 flow to the subscriber.
	require.NoError(t, h.deliver(peerB, &PubrecPacket{MsgID: delivery.MsgID}))
	assert.Equal(t, &PubrelPacket{MsgID: delivery.MsgID}, h.takeOne(peerB))

	// PUBREL was lost; a duplicate PUBREC gets it again.
	require.NoError(t, h.deliver(peerB, &PubrecPacket{MsgID: delivery.MsgID}))
	assert.Equal(t, &PubrelPacket{MsgID: delivery.MsgID}, h.takeOne(peerB))

	require.NoError(t, h.deliver(peerB, &PubcompPacket{MsgID: delivery.MsgID}))
	assert.Zero(t, h.gw.pending.Len())
	assert.Zero(t, h.gw.pending.StoredLen())

	require.NoError(t, h.deliver(peerB, &PubcompPacket{MsgID: delivery.MsgID}))
	assert.InDelta(t, 1, h.dropped(dropStale), 0)
}

func TestGatewayPublishRejections(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	id := h.register(peerA, "t")

	tests := []struct {
		name   string
		packet *PublishPacket
		want   *PubackPacket
	}{
		{
			name:   "unknown topic id",
			packet: &PublishPacket{QoS: QoS1, TopicID: 99, MsgID: 1},
			want:   &PubackPacket{TopicID: 99, MsgID: 1, ReturnCode: RejectedInvalidTopicID},
		},
		{
			name:   "unknown topic id at qos 0",
			packet: &PublishPacket{TopicID: 99},
			want:   &PubackPacket{TopicID: 99, ReturnCode: RejectedInvalidTopicID},
		},
		{
			name:   "predefined topic id",
			packet: &PublishPacket{QoS: QoS1, TopicIDType: TopicIDPredefined, TopicID: id, MsgID: 2},
			want:   &PubackPacket{TopicID: id, MsgID: 2, ReturnCode: RejectedInvalidTopicID},
		},
		{
			name:   "qos 1 without message id",
			packet: &PublishPacket{QoS: QoS1, TopicID: id},
			want:   &PubackPacket{TopicID: id, ReturnCode: RejectedNotSupported},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, h.deliver(peerA, tt.packet))
			assert.Equal(t, tt.want, h.takeOne(peerA))
		})
	}
}

func TestGatewayPublishRateLimit(t *testing.T) {
	h := newGatewayHarness(t, WithPublishRateLimit(1, 1))
	h.connect(peerA, "pub", 60)
	id := h.register(peerA, "t")

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1}))
	assert.Equal(t, &PubackPacket{TopicID: id, MsgID: 1, ReturnCode: Accepted}, h.takeOne(peerA))

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 2}))
	assert.Equal(t, &PubackPacket{TopicID: id, MsgID: 2, ReturnCode: RejectedCongestion}, h.takeOne(peerA))

	// QoS 0 publishes over the limit are dropped silently.
	require.NoError(t, h.deliver(peerA, &PublishPacket{TopicID: id}))
	assert.Empty(t, h.take(peerA))
	assert.InDelta(t, 2, h.dropped(dropCongested), 0)

	h.advance(time.Second)
	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 3}))
	assert.Equal(t, &PubackPacket{TopicID: id, MsgID: 3, ReturnCode: Accepted}, h.takeOne(peerA))
}

func TestGatewaySubscriberRejectsTopicID(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "sub", 60)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS1)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1}))
	h.take(peerA)
	delivery := h.takeOne(peerB).(*PublishPacket)

	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, MsgID: delivery.MsgID, ReturnCode: RejectedInvalidTopicID}))
	assert.Zero(t, h.gw.subscriptions.Len())
	assert.Zero(t, h.gw.pending.Len())

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 2}))
	h.take(peerA)
	assert.Empty(t, h.take(peerB))
}

func TestGatewayQoS0SubscriberRejectsTopicID(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "pub", 60)
	h.connect(peerB, "sub", 60)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS0)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS0, TopicID: id}))
	delivery := h.takeOne(peerB).(*PublishPacket)
	assert.Zero(t, delivery.MsgID)

	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, ReturnCode: Accepted}))
	assert.InDelta(t, 1, h.dropped(dropStale), 0)
	assert.Equal(t, 1, h.gw.subscriptions.Len())

	require.NoError(t, h.deliver(peerB, &PubackPacket{TopicID: id, ReturnCode: RejectedInvalidTopicID}))
	assert.Zero(t, h.gw.subscriptions.Len())
	assert.InDelta(t, 1, h.dropped(dropStale), 0)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS0, TopicID: id}))
	assert.Empty(t, h.take(peerB))
}

func TestGatewayStrictMode(t *testing.T) {
	setup := func(t *testing.T, strict bool) (*gatewayHarness, *PublishPacket) {
		h := newGatewayHarness(t, WithGatewayStrictMode(strict))
		h.connect(peerA, "pub", 60)
		h.connect(peerB, "sub", 60)

		id := h.register(peerA, "t")
		h.subscribe(peerB, "t", QoS1)

		require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1}))
		h.take(peerA)
		return h, h.takeOne(peerB).(*PublishPacket)
	}

	t.Run("lenient logs and continues", func(t *testing.T) {
		h, delivery := setup(t, false)

		err := h.deliver(peerB, &PubackPacket{TopicID: delivery.TopicID, MsgID: delivery.MsgID, ReturnCode: RejectedCongestion})
		require.NoError(t, err)
		assert.InDelta(t, 1, h.dropped(dropInconsist), 0)
		assert.Equal(t, 1, h.gw.pending.Len())
	})

	t.Run("strict returns the error", func(t *testing.T) {
		h, delivery := setup(t, true)

		err := h.deliver(peerB, &PubackPacket{TopicID: delivery.TopicID, MsgID: delivery.MsgID, ReturnCode: RejectedCongestion})
		require.ErrorIs(t, err, ErrProtocolInconsistency)
	})
}

func TestGatewayKeepAlive(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "a", 10)

	h.advance(10 * time.Second)
	h.gw.sweepActive(h.clock)
	assert.Empty(t, h.take(peerA))

	h.advance(time.Second)
	h.gw.sweepActive(h.clock)
	assert.Equal(t, &PingreqPacket{}, h.takeOne(peerA))

	// The answer resets the solicitation.
	require.NoError(t, h.deliver(peerA, &PingrespPacket{}))
	assert.False(t, h.gw.clients[peerA].PingSent)

	h.advance(11 * time.Second)
	h.gw.sweepActive(h.clock)
	assert.Equal(t, &PingreqPacket{}, h.takeOne(peerA))

	h.advance(5 * time.Second)
	h.gw.sweepActive(h.clock)
	assert.Empty(t, h.take(peerA))
	assert.Equal(t, ClientActive, h.state(peerA))

	h.advance(6 * time.Second)
	h.gw.sweepActive(h.clock)
	assert.Equal(t, ClientLost, h.state(peerA))
}

func TestGatewayZeroKeepAliveNeverExpires(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "a", 0)

	h.advance(24 * time.Hour)
	h.gw.sweepActive(h.clock)
	assert.Empty(t, h.take(peerA))
	assert.Equal(t, ClientActive, h.state(peerA))
}

func TestGatewayPingreq(t *testing.T) {
	h := newGatewayHarness(t)
	h.connect(peerA, "a", 60)

	require.NoError(t, h.deliver(peerA, &PingreqPacket{}))
	assert.Equal(t, &PingrespPacket{}, h.takeOne(peerA))

	t.Run("awake solicitation", func(t *testing.T) {
		require.NoError(t, h.deliver(peerA, &DisconnectPacket{Duration: 30}))
		h.take(peerA)
		require.Equal(t, ClientAsleep, h.state(peerA))

		require.NoError(t, h.deliver(peerA, &PingreqPacket{ClientID: "a"}))
		assert.Equal(t, &PingrespPacket{}, h.takeOne(peerA))
		assert.Equal(t, ClientAsleep, h.state(peerA))
	})

	t.Run("foreign client id is ignored", func(t *testing.T) {
		before := h.dropped(dropState)

		require.NoError(t, h.deliver(peerA, &PingreqPacket{ClientID: "b"}))
		assert.Empty(t, h.take(peerA))
		assert.InDelta(t, before+1, h.dropped(dropState), 0)
	})
}

func TestGatewayWillOnLost(t *testing.T) {
	h := newGatewayHarness(t)

	require.NoError(t, h.deliver(peerA, &ConnectPacket{Will: true, CleanSession: true, ProtocolID: ProtocolID, Duration: 10, ClientID: "a"}))
	require.NoError(t, h.deliver(peerA, &WillTopicPacket{QoS: QoS1, Topic: "clients/a"}))
	require.NoError(t, h.deliver(peerA, &WillMsgPacket{Message: []byte("lost")}))
	h.take(peerA)

	h.connect(peerB, "watcher", 600)
	id := h.subscribe(peerB, "clients/a", QoS1)

	h.advance(11 * time.Second)
	h.gw.sweepActive(h.clock)
	h.advance(11 * time.Second)
	h.gw.sweepActive(h.clock)
	require.Equal(t, ClientLost, h.state(peerA))

	delivery, ok := h.takeOne(peerB).(*PublishPacket)
	require.True(t, ok)
	assert.Equal(t, id, delivery.TopicID)
	assert.Equal(t, QoS1, delivery.QoS)
	assert.Equal(t, []byte("lost"), delivery.Data)

	_, ok = h.gw.wills.Will(peerA)
	assert.False(t, ok)
}

func TestGatewayDisconnect(t *testing.T) {
	t.Run("clears will without publishing", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "a", 60)
		h.gw.wills.SetTopic(peerA, "clients/a", QoS0, false)

		h.connect(peerB, "watcher", 60)
		h.subscribe(peerB, "clients/a", QoS0)

		require.NoError(t, h.deliver(peerA, &DisconnectPacket{}))
		assert.Equal(t, &DisconnectPacket{}, h.takeOne(peerA))
		assert.Equal(t, ClientDisconnected, h.state(peerA))
		assert.Empty(t, h.take(peerB))

		_, ok := h.gw.wills.Will(peerA)
		assert.False(t, ok)

		// Only CONNECT is accepted from a disconnected client.
		require.NoError(t, h.deliver(peerA, &PingreqPacket{}))
		assert.Empty(t, h.take(peerA))
	})

	t.Run("sleep", func(t *testing.T) {
		h := newGatewayHarness(t)
		h.connect(peerA, "a", 60)

		require.NoError(t, h.deliver(peerA, &DisconnectPacket{Duration: 30}))
		assert.Equal(t, &DisconnectPacket{}, h.takeOne(peerA))
		assert.Equal(t, ClientAsleep, h.state(peerA))
		assert.Equal(t, 30*time.Second, h.gw.clients[peerA].SleepDuration)

		// Asleep clients may only ping or disconnect.
		require.NoError(t, h.deliver(peerA, &RegisterPacket{MsgID: 1, TopicName: "t"}))
		assert.Empty(t, h.take(peerA))

		h.states = nil
		require.NoError(t, h.deliver(peerA, &PingreqPacket{ClientID: "a"}))
		assert.Equal(t, &PingrespPacket{}, h.takeOne(peerA))
		assert.Equal(t, ClientAsleep, h.state(peerA))
		require.Len(t, h.states, 2)
		assert.Equal(t, ClientAwake, h.states[0].State)
		assert.Equal(t, ClientAsleep, h.states[1].State)

		h.advance(30 * time.Second)
		h.gw.sweepAsleep(h.clock)
		assert.Equal(t, ClientAsleep, h.state(peerA))

		h.advance(time.Second)
		h.gw.sweepAsleep(h.clock)
		assert.Equal(t, ClientLost, h.state(peerA))
	})
}

func TestGatewayPurgeInactive(t *testing.T) {
	h := newGatewayHarness(t, WithMaximumInactivityTime(time.Minute))
	h.connect(peerA, "a", 60)
	h.connect(peerB, "b", 60)
	h.subscribe(peerA, "t", QoS1)

	require.NoError(t, h.deliver(peerA, &DisconnectPacket{}))
	h.take(peerA)

	h.advance(time.Minute)
	h.gw.sweepInactive(h.clock)
	assert.Len(t, h.gw.clients, 2)

	h.advance(time.Second)
	h.gw.sweepInactive(h.clock)

	_, ok := h.gw.clients[peerA]
	assert.False(t, ok)
	assert.Zero(t, h.gw.subscriptions.Len())
	assert.Equal(t, ClientActive, h.state(peerB))
	assert.InDelta(t, 0, h.metrics.GaugeValue(MetricClients, MetricLabels{LabelState: "DISCONNECTED"}), 0)
}

func TestGatewayRetransmission(t *testing.T) {
	h := newGatewayHarness(t, WithRetransmission(10*time.Second, 2))
	h.connect(peerA, "pub", 600)
	h.connect(peerB, "sub", 600)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS1)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS1, TopicID: id, MsgID: 1, Data: []byte("x")}))
	h.take(peerA)
	first := h.takeOne(peerB).(*PublishPacket)
	assert.False(t, first.DUP)

	h.advance(5 * time.Second)
	h.gw.retransmit(h.clock)
	assert.Empty(t, h.take(peerB))

	for attempt := 2; attempt <= 3; attempt++ {
		h.advance(10 * time.Second)
		h.gw.retransmit(h.clock)

		dup, ok := h.takeOne(peerB).(*PublishPacket)
		require.True(t, ok)
		assert.True(t, dup.DUP)
		assert.Equal(t, first.MsgID, dup.MsgID)
		assert.Equal(t, []byte("x"), dup.Data)

		req, ok := h.gw.pending.Get(first.MsgID)
		require.True(t, ok)
		assert.Equal(t, attempt, req.Attempts)
	}

	h.advance(10 * time.Second)
	h.gw.retransmit(h.clock)
	assert.Empty(t, h.take(peerB))
	assert.Zero(t, h.gw.pending.Len())
	assert.Zero(t, h.gw.pending.StoredLen())
	assert.Equal(t, ClientLost, h.state(peerB))
	assert.InDelta(t, 2, h.metrics.CounterValue(MetricRetransmissions, MetricLabels{LabelMsgType: "PUBLISH"}), 0)
}

func TestGatewayRetransmitsPubrel(t *testing.T) {
	h := newGatewayHarness(t, WithRetransmission(10*time.Second, 3))
	h.connect(peerA, "pub", 600)
	h.connect(peerB, "sub", 600)

	id := h.register(peerA, "t")
	h.subscribe(peerB, "t", QoS2)

	require.NoError(t, h.deliver(peerA, &PublishPacket{QoS: QoS2, TopicID: id, MsgID: 1}))
	require.NoError(t, h.deliver(peerA, &PubrelPacket{MsgID: 1}))
	h.take(peerA)

	delivery := h.takeOne(peerB).(*PublishPacket)
	require.NoError(t, h.deliver(peerB, &PubrecPacket{MsgID: delivery.MsgID}))
	h.take(peerB)

	h.advance(10 * time.Second)
	h.gw.retransmit(h.clock)
	assert.Equal(t, &PubrelPacket{MsgID: delivery.MsgID}, h.takeOne(peerB))
	assert.InDelta(t, 1, h.metrics.CounterValue(MetricRetransmissions, MetricLabels{LabelMsgType: "PUBREL"}), 0)
}

func TestGatewayTimers(t *testing.T) {
	h := newGatewayHarness(t)

	require.NoError(t, h.gw.handleTimer(timerAdvertise))
	assert.Equal(t, []Packet{&AdvertisePacket{GatewayID: 9, Duration: 60}}, h.transport.broadcastPackets(t))
	assert.True(t, h.gw.loop.timers.active(timerAdvertise))

	for _, name := range []string{timerActiveCheck, timerAsleepCheck, timerClientsClear, timerRetransmit} {
		require.NoError(t, h.gw.handleTimer(name))
		assert.True(t, h.gw.loop.timers.active(name), name)
	}
}

func TestGatewayServe(t *testing.T) {
	t.Run("requires a transport", func(t *testing.T) {
		assert.ErrorIs(t, NewGateway().Serve(context.Background()), ErrNoTransport)
	})

	t.Run("answers searches until canceled", func(t *testing.T) {
		transport := newFakeTransport("192.168.1.1:1883")
		defer transport.Close()

		gw := NewGateway(WithGatewayTransport(transport), WithGatewayID(5))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- gw.Serve(ctx) }()

		data, err := MarshalPacket(&SearchGwPacket{Radius: 1})
		require.NoError(t, err)
		transport.incoming <- Datagram{Payload: data, From: peerA, Broadcast: true}

		require.Eventually(t, func() bool {
			for _, p := range transport.broadcastPackets(t) {
				if info, ok := p.(*GwInfoPacket); ok && info.GatewayID == 5 {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)

		assert.ErrorIs(t, gw.Serve(ctx), ErrEngineRunning)

		cancel()
		require.NoError(t, <-done)
	})
}
