package mqttsn

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"
)

// GatewayState is the gateway-wide availability state.
type GatewayState byte

// Gateway states.
const (
	GatewayOffline GatewayState = iota
	GatewayOnline
)

func (s GatewayState) String() string {
	if s == GatewayOnline {
		return "ONLINE"
	}
	return "OFFLINE"
}

// Gateway timers.
const (
	timerGatewayState = "gateway-state"
	timerAdvertise    = "advertise"
	timerActiveCheck  = "active-clients-check"
	timerAsleepCheck  = "asleep-clients-check"
	timerClientsClear = "clients-clear"
	timerRetransmit   = "retransmission"
)

// Gateway is an MQTT-SN gateway. All of its state is owned by the loop
// started with Serve.
type Gateway struct {
	config    *gatewayConfig
	transport Transport
	logger    Logger
	metrics   engineMetrics
	loop      *eventLoop
	running   atomic.Bool
	now       func() time.Time

	state         GatewayState
	clients       map[netip.AddrPort]*ClientRecord
	topics        *TopicRegistry
	subscriptions *SubscriptionRegistry
	pending       *PendingTracker
	wills         *WillManager
	flow          *FlowController
}

// NewGateway creates a gateway. Serve starts it.
func NewGateway(opts ...GatewayOption) *Gateway {
	config := defaultGatewayConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &Gateway{
		config:        config,
		transport:     config.transport,
		logger:        config.logger.WithFields(LogFields{LogFieldGatewayID: config.gatewayID}),
		metrics:       newEngineMetrics(config.metrics),
		loop:          newEventLoop(),
		now:           time.Now,
		clients:       make(map[netip.AddrPort]*ClientRecord),
		topics:        NewTopicRegistry(),
		subscriptions: NewSubscriptionRegistry(),
		pending:       NewPendingTracker(),
		wills:         NewWillManager(),
		flow:          NewFlowController(config.publishRate, config.publishBurst),
	}
}

// ID returns the gateway id.
func (g *Gateway) ID() byte {
	return g.config.gatewayID
}

// Serve runs the gateway until ctx is done or the transport is closed.
// In strict mode it also returns the first protocol inconsistency.
func (g *Gateway) Serve(ctx context.Context) error {
	if g.transport == nil {
		return ErrNoTransport
	}
	if !g.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}

	g.logger.Info("gateway starting", LogFields{LogFieldPeer: g.transport.LocalAddr().String()})
	g.start()

	err := g.loop.run(ctx, g.transport, loopHandlers{
		datagram: g.handleDatagram,
		timer:    g.handleTimer,
	})

	g.logger.Info("gateway stopped", nil)
	return err
}

func (g *Gateway) start() {
	if g.config.offlineInterval == 0 {
		g.goOnline()
		return
	}

	g.state = GatewayOffline
	g.loop.timers.schedule(timerGatewayState, g.config.offlineInterval)
}

func (g *Gateway) goOnline() {
	g.state = GatewayOnline
	g.logger.Info("gateway online", nil)

	g.sendAdvertise()
	g.scheduleIfSet(timerAdvertise, g.config.advertiseInterval)
	g.scheduleIfSet(timerActiveCheck, g.config.activeCheckInterval)
	g.scheduleIfSet(timerAsleepCheck, g.config.asleepCheckInterval)
	g.scheduleIfSet(timerClientsClear, g.config.clearInterval)
	g.scheduleIfSet(timerRetransmit, g.config.retransmissionInterval)
	g.scheduleIfSet(timerGatewayState, g.config.onlineInterval)
}

func (g *Gateway) goOffline() {
	g.state = GatewayOffline
	g.logger.Info("gateway offline", nil)

	for _, name := range []string{timerAdvertise, timerActiveCheck, timerAsleepCheck, timerClientsClear, timerRetransmit} {
		g.loop.timers.cancel(name)
	}

	if g.config.offlineInterval == 0 {
		g.goOnline()
		return
	}
	g.loop.timers.schedule(timerGatewayState, g.config.offlineInterval)
}

func (g *Gateway) scheduleIfSet(name string, d time.Duration) {
	if d > 0 {
		g.loop.timers.schedule(name, d)
	}
}

func (g *Gateway) handleTimer(name string) error {
	now := g.now()

	switch name {
	case timerGatewayState:
		if g.state == GatewayOnline {
			g.goOffline()
		} else {
			g.goOnline()
		}
		return nil

	case timerAdvertise:
		g.sendAdvertise()
		g.scheduleIfSet(timerAdvertise, g.config.advertiseInterval)

	case timerActiveCheck:
		g.sweepActive(now)
		g.scheduleIfSet(timerActiveCheck, g.config.activeCheckInterval)

	case timerAsleepCheck:
		g.sweepAsleep(now)
		g.scheduleIfSet(timerAsleepCheck, g.config.asleepCheckInterval)

	case timerClientsClear:
		g.sweepInactive(now)
		g.scheduleIfSet(timerClientsClear, g.config.clearInterval)

	case timerRetransmit:
		g.retransmit(now)
		g.scheduleIfSet(timerRetransmit, g.config.retransmissionInterval)
	}

	return nil
}

func (g *Gateway) handleDatagram(dg Datagram) error {
	if g.state != GatewayOnline {
		g.metrics.dropped(dropOffline)
		return nil
	}
	if dg.From == g.transport.LocalAddr() {
		g.metrics.dropped(dropSelf)
		return nil
	}

	packet, err := ReadPacket(dg.Payload)
	if err != nil {
		g.metrics.dropped(dropMalformed)
		g.logger.Debug("malformed frame", LogFields{
			LogFieldPeer:  dg.From.String(),
			LogFieldError: err.Error(),
		})
		return nil
	}

	g.metrics.received(packet.Type())

	if _, ok := packet.(*SearchGwPacket); ok {
		g.answerSearch(dg)
		return nil
	}

	if err := g.dispatch(dg.From, packet); err != nil {
		return g.reject(dg.From, packet.Type(), err)
	}
	return nil
}

// answerSearch replies to SEARCHGW with GWINFO, broadcast when the search
// was broadcast and unicast to the searcher otherwise.
func (g *Gateway) answerSearch(dg Datagram) {
	info := &GwInfoPacket{GatewayID: g.config.gatewayID}
	if dg.Broadcast {
		g.broadcast(info)
		return
	}
	g.send(dg.From, info)
}

func (g *Gateway) dispatch(peer netip.AddrPort, packet Packet) error {
	switch p := packet.(type) {
	case *AdvertisePacket, *GwInfoPacket:
		// Other gateways on the segment.
		return nil
	case *ConnectPacket:
		return g.handleConnect(peer, p)
	}

	rec, ok := g.clients[peer]
	if !ok || !allowedIn(rec.State, packet.Type()) {
		return ErrUnexpectedState
	}

	rec.LastActivity = g.now()

	switch p := packet.(type) {
	case *WillTopicPacket:
		return g.handleWillTopic(rec, p)
	case *WillMsgPacket:
		return g.handleWillMsg(rec, p)
	case *WillTopicUpdPacket:
		return g.handleWillTopicUpd(rec, p)
	case *WillMsgUpdPacket:
		return g.handleWillMsgUpd(rec, p)
	case *RegisterPacket:
		return g.handleRegister(rec, p)
	case *PublishPacket:
		return g.handlePublish(rec, p)
	case *PubrelPacket:
		return g.handlePubrel(rec, p)
	case *PubackPacket:
		return g.handlePuback(rec, p)
	case *PubrecPacket:
		return g.handlePubrec(rec, p)
	case *PubcompPacket:
		return g.handlePubcomp(rec, p)
	case *SubscribePacket:
		return g.handleSubscribe(rec, p)
	case *UnsubscribePacket:
		return g.handleUnsubscribe(rec, p)
	case *PingreqPacket:
		return g.handlePingreq(rec, p)
	case *PingrespPacket:
		rec.PingSent = false
		return nil
	case *DisconnectPacket:
		return g.handleDisconnect(rec, p)
	}

	return ErrUnexpectedState
}

func (g *Gateway) reject(peer netip.AddrPort, msgType MsgType, err error) error {
	return dropFrame(g.logger, g.metrics, g.config.strict, LogFields{
		LogFieldPeer:    peer.String(),
		LogFieldMsgType: msgType.String(),
	}, err)
}

func (g *Gateway) send(to netip.AddrPort, packet Packet) {
	data, err := MarshalPacket(packet)
	if err != nil {
		g.logger.Error("encode failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	if err := g.transport.Send(data, to); err != nil {
		g.logger.Warn("send failed", LogFields{
			LogFieldPeer:    to.String(),
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	g.metrics.sent(packet.Type())
}

func (g *Gateway) broadcast(packet Packet) {
	data, err := MarshalPacket(packet)
	if err != nil {
		g.logger.Error("encode failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	if err := g.transport.Broadcast(data); err != nil {
		g.logger.Warn("broadcast failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	g.metrics.sent(packet.Type())
}

func (g *Gateway) sendAdvertise() {
	g.broadcast(&AdvertisePacket{
		GatewayID: g.config.gatewayID,
		Duration:  uint16(min(g.config.advertiseInterval/time.Second, 0xFFFF)),
	})
}

func (g *Gateway) setState(rec *ClientRecord, state ClientState) {
	if rec.State == state {
		return
	}

	g.logger.Debug("client state changed", LogFields{
		LogFieldPeer:     rec.Addr.String(),
		LogFieldClientID: rec.ClientID,
		LogFieldState:    state.String(),
	})

	rec.State = state
	g.updateClientGauges()

	if g.config.onClientState != nil {
		g.config.onClientState(rec.Info())
	}

	if state == ClientLost {
		g.publishWill(rec)
	}
}

func (g *Gateway) updateClientGauges() {
	counts := make(map[ClientState]int, len(clientStateNames))
	for _, rec := range g.clients {
		counts[rec.State]++
	}
	for state, name := range clientStateNames {
		g.metrics.clients(name, counts[state])
	}
}
