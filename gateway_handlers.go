package mqttsn

import (
	"errors"
	"net/netip"
)

func (g *Gateway) handleConnect(peer netip.AddrPort, p *ConnectPacket) error {
	if err := p.Validate(); err != nil {
		g.logger.Debug("connect rejected", LogFields{
			LogFieldPeer:  peer.String(),
			LogFieldError: err.Error(),
		})
		g.send(peer, &ConnackPacket{ReturnCode: RejectedNotSupported})
		return nil
	}

	rec, known := g.clients[peer]
	if !known {
		if len(g.clients) >= g.config.maxClients {
			g.logger.Warn("client table full", LogFields{
				LogFieldPeer:     peer.String(),
				LogFieldClientID: p.ClientID,
			})
			g.send(peer, &ConnackPacket{ReturnCode: RejectedCongestion})
			return nil
		}

		rec = &ClientRecord{Addr: peer}
		g.clients[peer] = rec
	}

	rec.ClientID = p.ClientID
	rec.KeepAlive = secondsDuration(p.Duration)
	rec.SleepDuration = 0
	rec.PingSent = false
	rec.LastActivity = g.now()

	if p.CleanSession {
		g.subscriptions.UnsubscribeAll(peer)
		g.wills.Remove(peer)
		g.metrics.gauge(MetricSubscriptions, g.subscriptions.Len())
	}

	g.setState(rec, ClientActive)

	if p.Will {
		rec.will = willAwaitTopic
		g.send(peer, &WillTopicReqPacket{})
		return nil
	}

	rec.will = willNone
	g.send(peer, &ConnackPacket{ReturnCode: Accepted})
	return nil
}

func (g *Gateway) handleWillTopic(rec *ClientRecord, p *WillTopicPacket) error {
	if rec.will != willAwaitTopic {
		return ErrUnexpectedState
	}

	// An empty WILLTOPIC withdraws the will and completes the handshake.
	if p.Topic == "" {
		g.wills.ClearWill(rec.Addr)
		rec.will = willNone
		g.send(rec.Addr, &ConnackPacket{ReturnCode: Accepted})
		return nil
	}

	g.wills.SetTopic(rec.Addr, p.Topic, p.QoS, p.Retain)
	rec.will = willAwaitMessage
	g.send(rec.Addr, &WillMsgReqPacket{})
	return nil
}

func (g *Gateway) handleWillMsg(rec *ClientRecord, p *WillMsgPacket) error {
	if rec.will != willAwaitMessage {
		return ErrUnexpectedState
	}

	g.wills.SetMessage(rec.Addr, p.Message)
	rec.will = willNone
	g.send(rec.Addr, &ConnackPacket{ReturnCode: Accepted})
	return nil
}

func (g *Gateway) handleWillTopicUpd(rec *ClientRecord, p *WillTopicUpdPacket) error {
	g.wills.SetTopic(rec.Addr, p.Topic, p.QoS, p.Retain)
	g.send(rec.Addr, &WillTopicRespPacket{ReturnCode: Accepted})
	return nil
}

func (g *Gateway) handleWillMsgUpd(rec *ClientRecord, p *WillMsgUpdPacket) error {
	code := Accepted
	if !g.wills.SetMessage(rec.Addr, p.Message) {
		code = RejectedNotSupported
	}
	g.send(rec.Addr, &WillMsgRespPacket{ReturnCode: code})
	return nil
}

// topicFor resolves name, registering it when unknown.
func (g *Gateway) topicFor(name string) (uint16, ReturnCode) {
	if id, err := g.topics.Resolve(name); err == nil {
		return id, Accepted
	}

	id, err := g.topics.Register(name)
	switch {
	case errors.Is(err, ErrResourceExhausted):
		return 0, RejectedCongestion
	case err != nil:
		return 0, RejectedNotSupported
	}

	g.metrics.gauge(MetricTopics, g.topics.Len())
	g.logger.Debug("topic registered", LogFields{
		LogFieldTopic:   SanitizeTopicName(name),
		LogFieldTopicID: id,
	})

	return id, Accepted
}

func (g *Gateway) handleRegister(rec *ClientRecord, p *RegisterPacket) error {
	id, code := g.topicFor(p.TopicName)
	g.send(rec.Addr, &RegackPacket{
		TopicID:    id,
		MsgID:      p.MsgID,
		ReturnCode: code,
	})
	return nil
}

func (g *Gateway) handleSubscribe(rec *ClientRecord, p *SubscribePacket) error {
	var (
		id   uint16
		code = RejectedNotSupported
	)

	if p.TopicIDType == TopicIDNormal {
		id, code = g.topicFor(p.TopicName)
	}

	if code.IsAccepted() {
		g.subscriptions.Subscribe(rec.Addr, id, p.QoS)
		g.metrics.gauge(MetricSubscriptions, g.subscriptions.Len())
	}

	g.send(rec.Addr, &SubackPacket{
		QoS:        p.QoS,
		TopicID:    id,
		MsgID:      p.MsgID,
		ReturnCode: code,
	})
	return nil
}

func (g *Gateway) handleUnsubscribe(rec *ClientRecord, p *UnsubscribePacket) error {
	if p.TopicIDType == TopicIDNormal {
		if id, err := g.topics.Resolve(p.TopicName); err == nil {
			g.subscriptions.Unsubscribe(rec.Addr, id)
			g.metrics.gauge(MetricSubscriptions, g.subscriptions.Len())
		}
	}

	g.send(rec.Addr, &UnsubackPacket{MsgID: p.MsgID})
	return nil
}

func (g *Gateway) handlePingreq(rec *ClientRecord, p *PingreqPacket) error {
	if p.ClientID != "" && p.ClientID != rec.ClientID {
		return ErrUnexpectedState
	}

	if p.ClientID != "" && rec.State == ClientAsleep {
		g.setState(rec, ClientAwake)
		// TODO: flush messages buffered for the client while it was asleep.
		g.setState(rec, ClientAsleep)
	}

	rec.PingSent = false
	g.send(rec.Addr, &PingrespPacket{})
	return nil
}

func (g *Gateway) handleDisconnect(rec *ClientRecord, p *DisconnectPacket) error {
	rec.will = willNone

	if p.Duration > 0 {
		rec.SleepDuration = secondsDuration(p.Duration)
		g.setState(rec, ClientAsleep)
	} else {
		g.wills.ClearWill(rec.Addr)
		g.setState(rec, ClientDisconnected)
	}

	g.send(rec.Addr, &DisconnectPacket{})
	return nil
}
