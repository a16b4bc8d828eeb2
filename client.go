package mqttsn

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// SessionState is the client's own connection state.
type SessionState byte

// Session states.
const (
	SessionDisconnected SessionState = iota
	SessionSearching
	SessionConnecting
	SessionActive
	SessionAsleep
	SessionAwake
)

var sessionStateNames = map[SessionState]string{
	SessionDisconnected: "DISCONNECTED",
	SessionSearching:    "SEARCHING",
	SessionConnecting:   "CONNECTING",
	SessionActive:       "ACTIVE",
	SessionAsleep:       "ASLEEP",
	SessionAwake:        "AWAKE",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Client timers.
const (
	timerSearch    = "search-gateway"
	timerConnect   = "connect"
	timerKeepAlive = "keep-alive"
	timerWake      = "wake"
	timerRegister  = "registration"
	timerPublish   = "publish"
)

// Client is an MQTT-SN client. It discovers a gateway, keeps a session
// alive, registers and publishes its fixture and delivers messages for its
// subscriptions. All of its state is owned by the loop started with Run.
type Client struct {
	config    *clientConfig
	transport Transport
	logger    Logger
	metrics   engineMetrics
	loop      *eventLoop
	running   atomic.Bool
	now       func() time.Time

	clientID  string
	state     SessionState
	gateway   netip.AddrPort
	gatewayID byte
	msgIDs    *IDManager
	retries   *retransmissions

	// sleepDuration is set between Sleep and the gateway's DISCONNECT echo,
	// and while the session is asleep.
	sleepDuration time.Duration
	disconnecting bool

	// Topic ids learned through REGACK and SUBACK.
	topicIDs   map[string]uint16
	topicNames map[uint16]string

	registration registrationAttempt
	publish      publishAttempt

	subscriptions map[uint16]byte
	pendingTopics map[uint16]string
	receivedQoS2  map[uint16]*Message
	willUpdate    *WillMessage
}

// NewClient creates a client. Run starts it.
func NewClient(opts ...Option) *Client {
	config := defaultClientConfig()
	for _, opt := range opts {
		opt(config)
	}

	clientID := config.clientID
	if clientID == "" {
		clientID = generateClientID()
	}

	c := &Client{
		config:        config,
		transport:     config.transport,
		logger:        config.logger.WithFields(LogFields{LogFieldClientID: clientID}),
		metrics:       newEngineMetrics(config.metrics),
		loop:          newEventLoop(),
		now:           time.Now,
		clientID:      clientID,
		msgIDs:        NewIDManager(),
		topicIDs:      make(map[string]uint16),
		topicNames:    make(map[uint16]string),
		subscriptions: make(map[uint16]byte),
		pendingTopics: make(map[uint16]string),
		receivedQoS2:  make(map[uint16]*Message),
	}
	c.retries = newRetransmissions(c)

	return c
}

func generateClientID() string {
	return shortuuid.New()
}

// ClientID returns the client identifier sent in CONNECT.
func (c *Client) ClientID() string {
	return c.clientID
}

// Run starts the session and blocks until ctx is done or the transport is
// closed. In strict mode it also returns the first protocol inconsistency.
func (c *Client) Run(ctx context.Context) error {
	if c.transport == nil {
		return ErrNoTransport
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}

	c.start()

	err := c.loop.run(ctx, c.transport, loopHandlers{
		datagram: c.handleDatagram,
		timer:    c.handleTimer,
	})

	if c.state == SessionActive {
		c.send(&DisconnectPacket{})
	}
	c.state = SessionDisconnected

	return err
}

func (c *Client) start() {
	if c.config.gateway.IsValid() {
		c.gateway = c.config.gateway
		c.connect()
		return
	}
	c.search()
}

// call runs fn on the client loop and waits for its result.
func (c *Client) call(fn func() error) error {
	if !c.running.Load() {
		return ErrEngineNotRunning
	}

	result := make(chan error, 1)
	if !c.loop.invoke(func() { result <- fn() }) {
		return ErrEngineNotRunning
	}

	select {
	case err := <-result:
		return err
	case <-c.loop.done:
		return ErrEngineNotRunning
	}
}

// State returns the current session state.
func (c *Client) State() SessionState {
	var state SessionState
	if err := c.call(func() error {
		state = c.state
		return nil
	}); err != nil {
		return SessionDisconnected
	}
	return state
}

// Sleep asks the gateway to hold the session for d while the client sleeps.
func (c *Client) Sleep(d time.Duration) error {
	return c.call(func() error { return c.sleep(d) })
}

// Wake reconnects a sleeping client.
func (c *Client) Wake() error {
	return c.call(c.wake)
}

// Disconnect ends the session. The gateway discards the will.
func (c *Client) Disconnect() error {
	return c.call(c.disconnect)
}

// UpdateWill replaces the will on the gateway. A nil will removes it.
func (c *Client) UpdateWill(will *WillMessage) error {
	return c.call(func() error { return c.updateWill(will) })
}

func (c *Client) setState(state SessionState) {
	if c.state == state {
		return
	}

	c.logger.Debug("session state changed", LogFields{
		LogFieldState: state.String(),
	})
	c.state = state
}

func (c *Client) emit(event error) {
	if c.config.onEvent != nil {
		c.config.onEvent(c, event)
	}
}

func (c *Client) search() {
	c.setState(SessionSearching)
	c.gateway = netip.AddrPort{}
	c.broadcast(&SearchGwPacket{Radius: c.config.searchRadius})
	c.loop.timers.schedule(timerSearch, c.config.searchInterval)
}

func (c *Client) selectGateway(from netip.AddrPort, gatewayID byte) {
	c.gateway = from
	c.gatewayID = gatewayID
	c.loop.timers.cancel(timerSearch)

	c.logger.Info("gateway selected", LogFields{
		LogFieldPeer:      from.String(),
		LogFieldGatewayID: gatewayID,
	})
	c.emit(NewGatewayEvent(ErrGatewaySelected, from, gatewayID))

	c.connect()
}

func (c *Client) connect() {
	c.setState(SessionConnecting)
	// Waking up resumes the session the gateway kept while we slept.
	c.retries.start(&ConnectPacket{
		Will:         c.config.will != nil,
		CleanSession: c.config.cleanSession && c.sleepDuration == 0,
		ProtocolID:   ProtocolID,
		Duration:     durationSeconds(c.config.keepAlive),
		ClientID:     c.clientID,
	}, 0)
}

// lost abandons the gateway after a request ran out of attempts.
func (c *Client) lost(t MsgType, msgID uint16, attempts int) {
	c.logger.Warn("gateway lost", LogFields{
		LogFieldPeer:     c.gateway.String(),
		LogFieldMsgType:  t.String(),
		LogFieldAttempts: attempts,
	})

	c.reset()
	c.emit(&ConnectionLostEvent{MsgType: t, MsgID: msgID, Attempts: attempts})

	if c.config.gateway.IsValid() {
		c.connect()
		return
	}
	c.search()
}

// reset cancels every timer and request of the current session.
func (c *Client) reset() {
	c.loop.timers.cancelAll()
	c.retries.clear()
	c.msgIDs.Reset()

	c.sleepDuration = 0
	c.disconnecting = false
	c.publish.msgID = 0
	c.publish.inflight = false
	c.registration.msgID = 0
	c.willUpdate = nil
	clear(c.pendingTopics)
	clear(c.receivedQoS2)
}

func (c *Client) handleConnack(p *ConnackPacket) error {
	if c.state != SessionConnecting {
		return ErrUnexpectedState
	}
	if !c.retries.ack(MsgCONNECT, 0) {
		return ErrUnknownRequest
	}

	switch p.ReturnCode {
	case Accepted:
		c.enterActive()
		return nil

	case RejectedCongestion:
		c.loop.timers.schedule(timerConnect, c.config.waitingInterval)
		return nil

	default:
		c.logger.Warn("connect rejected", LogFields{
			LogFieldReturnCode: p.ReturnCode.String(),
		})
		if !p.ReturnCode.Valid() {
			return inconsistency(MsgCONNACK, p.ReturnCode)
		}
		if c.config.gateway.IsValid() {
			c.loop.timers.schedule(timerConnect, c.config.waitingInterval)
		} else {
			c.search()
		}
		return nil
	}
}

func (c *Client) enterActive() {
	wasAsleep := c.sleepDuration > 0
	c.sleepDuration = 0
	c.loop.timers.cancel(timerWake)
	c.setState(SessionActive)

	if c.config.cleanSession && !wasAsleep {
		clear(c.topicIDs)
		clear(c.topicNames)
		clear(c.subscriptions)
		c.registration = registrationAttempt{}
		c.publish = publishAttempt{}
	}

	c.logger.Info("connected", LogFields{LogFieldPeer: c.gateway.String()})
	c.emit(NewGatewayEvent(ErrConnected, c.gateway, c.gatewayID))

	if c.config.keepAlive > 0 {
		c.loop.timers.schedule(timerKeepAlive, c.config.keepAlive)
	}
	if len(c.config.fixture) > 0 {
		c.loop.timers.schedule(timerRegister, c.config.registrationInterval)
		c.loop.timers.schedule(timerPublish, c.config.publishInterval)
	}
}

func (c *Client) handleWillTopicReq() error {
	if c.state != SessionConnecting {
		return ErrUnexpectedState
	}

	will := c.config.will
	if will == nil {
		c.send(&WillTopicPacket{})
		return nil
	}

	c.send(&WillTopicPacket{QoS: will.QoS, Retain: will.Retain, Topic: will.Topic})
	return nil
}

func (c *Client) handleWillMsgReq() error {
	if c.state != SessionConnecting || c.config.will == nil {
		return ErrUnexpectedState
	}

	c.send(&WillMsgPacket{Message: c.config.will.Payload})
	return nil
}

func (c *Client) updateWill(will *WillMessage) error {
	if c.state != SessionActive {
		return ErrNotConnected
	}
	if will != nil {
		if err := will.Validate(); err != nil {
			return err
		}
	}

	c.config.will = will.Clone()
	c.willUpdate = will.Clone()
	c.retries.cancel(MsgWILLTOPICUPD, 0)
	c.retries.cancel(MsgWILLMSGUPD, 0)

	if will == nil {
		c.retries.start(&WillTopicUpdPacket{}, 0)
		return nil
	}

	c.retries.start(&WillTopicUpdPacket{QoS: will.QoS, Retain: will.Retain, Topic: will.Topic}, 0)
	return nil
}

func (c *Client) handleWillResp(t MsgType, code ReturnCode) error {
	request := MsgWILLTOPICUPD
	if t == MsgWILLMSGRESP {
		request = MsgWILLMSGUPD
	}
	if !c.retries.ack(request, 0) {
		return ErrUnknownRequest
	}
	if !code.Valid() {
		return inconsistency(t, code)
	}
	if !code.IsAccepted() {
		c.logger.Warn("will update rejected", LogFields{
			LogFieldMsgType:    t.String(),
			LogFieldReturnCode: code.String(),
		})
		c.willUpdate = nil
		return nil
	}

	if t == MsgWILLTOPICRESP && c.willUpdate != nil {
		c.retries.start(&WillMsgUpdPacket{Message: c.willUpdate.Payload}, 0)
		return nil
	}

	c.willUpdate = nil
	c.logger.Debug("will updated", nil)
	return nil
}

func (c *Client) sendKeepAlive() {
	if c.state != SessionActive {
		return
	}
	if !c.retries.pending(MsgPINGREQ, 0) {
		c.retries.start(&PingreqPacket{}, 0)
	}
	c.loop.timers.schedule(timerKeepAlive, c.config.keepAlive)
}

func (c *Client) handlePingreq() error {
	c.send(&PingrespPacket{})
	return nil
}

func (c *Client) handlePingresp() error {
	if !c.retries.ack(MsgPINGREQ, 0) {
		return ErrUnknownRequest
	}

	if c.state == SessionAwake {
		c.setState(SessionAsleep)
		c.loop.timers.schedule(timerWake, c.sleepDuration/2)
	}
	return nil
}

func (c *Client) sleep(d time.Duration) error {
	if c.state != SessionActive {
		return ErrNotConnected
	}
	if d < time.Second {
		return ErrInvalidSleepDuration
	}

	c.sleepDuration = d
	c.retries.start(&DisconnectPacket{Duration: durationSeconds(d)}, 0)
	return nil
}

func (c *Client) wakeUp() {
	if c.state != SessionAsleep {
		return
	}

	c.setState(SessionAwake)
	c.retries.start(&PingreqPacket{ClientID: c.clientID}, 0)
}

func (c *Client) wake() error {
	if c.state != SessionAsleep && c.state != SessionAwake {
		return ErrUnexpectedState
	}

	c.loop.timers.cancel(timerWake)
	c.retries.cancel(MsgPINGREQ, 0)
	c.connect()
	return nil
}

func (c *Client) disconnect() error {
	switch c.state {
	case SessionActive, SessionAsleep, SessionAwake:
	default:
		return ErrNotConnected
	}

	c.disconnecting = true
	c.sleepDuration = 0
	c.retries.cancel(MsgDISCONNECT, 0)
	c.retries.start(&DisconnectPacket{}, 0)
	return nil
}

func (c *Client) handleDisconnect() error {
	c.retries.ack(MsgDISCONNECT, 0)

	if c.sleepDuration > 0 && !c.disconnecting && c.state == SessionActive {
		for _, name := range []string{timerKeepAlive, timerRegister, timerPublish} {
			c.loop.timers.cancel(name)
		}
		c.suspendRequests()
		c.setState(SessionAsleep)
		c.loop.timers.schedule(timerWake, c.sleepDuration/2)
		c.logger.Info("asleep", LogFields{LogFieldDuration: c.sleepDuration.String()})
		c.emit(ErrAsleep)
		return nil
	}

	c.reset()
	c.setState(SessionDisconnected)
	c.logger.Info("disconnected", nil)
	c.emit(ErrDisconnected)
	return nil
}

func (c *Client) handleTimer(name string) error {
	switch name {
	case timerSearch:
		if c.state == SessionSearching {
			c.search()
		}
	case timerConnect:
		if c.state == SessionConnecting {
			c.connect()
		}
	case timerKeepAlive:
		c.sendKeepAlive()
	case timerWake:
		c.wakeUp()
	case timerRegister:
		c.sendRegistration()
	case timerPublish:
		c.sendPublish()
	default:
		c.retries.fire(name)
	}
	return nil
}

func (c *Client) handleDatagram(dg Datagram) error {
	packet, err := ReadPacket(dg.Payload)
	if err != nil {
		c.metrics.dropped(dropMalformed)
		c.logger.Debug("malformed frame", LogFields{
			LogFieldPeer:  dg.From.String(),
			LogFieldError: err.Error(),
		})
		return nil
	}

	c.metrics.received(packet.Type())

	switch p := packet.(type) {
	case *AdvertisePacket:
		if c.state == SessionSearching {
			c.selectGateway(dg.From, p.GatewayID)
		}
		return nil
	case *GwInfoPacket:
		if c.state == SessionSearching {
			c.selectGateway(dg.From, p.GatewayID)
		}
		return nil
	case *SearchGwPacket:
		return nil
	}

	if !c.gateway.IsValid() || dg.From != c.gateway {
		c.metrics.dropped(dropState)
		return nil
	}

	if err := c.dispatch(packet); err != nil {
		return dropFrame(c.logger, c.metrics, c.config.strict, LogFields{
			LogFieldPeer:    dg.From.String(),
			LogFieldMsgType: packet.Type().String(),
		}, err)
	}
	return nil
}

func (c *Client) dispatch(packet Packet) error {
	switch p := packet.(type) {
	case *ConnackPacket:
		return c.handleConnack(p)
	case *WillTopicReqPacket:
		return c.handleWillTopicReq()
	case *WillMsgReqPacket:
		return c.handleWillMsgReq()
	case *DisconnectPacket:
		return c.handleDisconnect()
	case *PingrespPacket:
		return c.handlePingresp()
	}

	if c.state != SessionActive && c.state != SessionAwake {
		return ErrUnexpectedState
	}

	switch p := packet.(type) {
	case *WillTopicRespPacket:
		return c.handleWillResp(MsgWILLTOPICRESP, p.ReturnCode)
	case *WillMsgRespPacket:
		return c.handleWillResp(MsgWILLMSGRESP, p.ReturnCode)
	case *RegackPacket:
		return c.handleRegack(p)
	case *PubackPacket:
		return c.handlePuback(p)
	case *PubrecPacket:
		return c.handlePubrec(p)
	case *PubcompPacket:
		return c.handlePubcomp(p)
	case *PublishPacket:
		return c.handlePublish(p)
	case *PubrelPacket:
		return c.handlePubrel(p)
	case *SubackPacket:
		return c.handleSuback(p)
	case *UnsubackPacket:
		return c.handleUnsuback(p)
	case *PingreqPacket:
		return c.handlePingreq()
	}

	return ErrUnexpectedState
}

func (c *Client) send(packet Packet) {
	data, err := MarshalPacket(packet)
	if err != nil {
		c.logger.Error("encode failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	if err := c.transport.Send(data, c.gateway); err != nil {
		c.logger.Warn("send failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	c.metrics.sent(packet.Type())
}

func (c *Client) broadcast(packet Packet) {
	data, err := MarshalPacket(packet)
	if err != nil {
		return
	}

	if err := c.transport.Broadcast(data); err != nil {
		c.logger.Warn("broadcast failed", LogFields{
			LogFieldMsgType: packet.Type().String(),
			LogFieldError:   err.Error(),
		})
		return
	}

	c.metrics.sent(packet.Type())
}

// nextMsgID allocates a message id for a new request.
func (c *Client) nextMsgID() (uint16, error) {
	return c.msgIDs.Allocate()
}

func (c *Client) releaseMsgID(id uint16) {
	if id != 0 {
		_ = c.msgIDs.Release(id)
	}
}

func durationSeconds(d time.Duration) uint16 {
	return uint16(min(d/time.Second, 0xFFFF))
}
