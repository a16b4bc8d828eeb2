package mqttsn

import (
	"net/netip"
	"time"
)

func (g *Gateway) handlePublish(rec *ClientRecord, p *PublishPacket) error {
	reply := func(code ReturnCode) {
		g.send(rec.Addr, &PubackPacket{
			TopicID:    p.TopicID,
			MsgID:      p.MsgID,
			ReturnCode: code,
		})
	}

	name, known := g.topics.Name(p.TopicID)
	if p.TopicIDType != TopicIDNormal || !known {
		reply(RejectedInvalidTopicID)
		return nil
	}

	if p.QoS > QoS0 && p.MsgID == 0 {
		reply(RejectedNotSupported)
		return nil
	}

	if !g.flow.Admit(g.now()) {
		g.metrics.dropped(dropCongested)
		if p.QoS > QoS0 {
			reply(RejectedCongestion)
		}
		return nil
	}

	msg := &Message{
		Topic:   name,
		TopicID: p.TopicID,
		Payload: p.Data,
		QoS:     p.QoS,
		Retain:  p.Retain,
	}

	switch p.QoS {
	case QoS0:
		g.dispatchToSubscribers(rec.Addr, msg)

	case QoS1:
		g.dispatchToSubscribers(rec.Addr, msg)
		reply(Accepted)

	case QoS2:
		if !g.wills.Buffer(rec.Addr, p.MsgID, msg) {
			g.logger.Debug("duplicate QoS 2 publish", LogFields{
				LogFieldPeer:  rec.Addr.String(),
				LogFieldMsgID: p.MsgID,
			})
		}
		g.send(rec.Addr, &PubrecPacket{MsgID: p.MsgID})
	}

	return nil
}

// handlePubrel releases a buffered QoS 2 publish. A repeated PUBREL finds
// nothing buffered and only gets PUBCOMP.
func (g *Gateway) handlePubrel(rec *ClientRecord, p *PubrelPacket) error {
	if msg, ok := g.wills.Release(rec.Addr, p.MsgID); ok {
		g.dispatchToSubscribers(rec.Addr, msg)
	}

	g.send(rec.Addr, &PubcompPacket{MsgID: p.MsgID})
	return nil
}

// dispatchToSubscribers fans msg out to every subscriber of its topic at
// min(subscription QoS, publish QoS). QoS 1 and 2 deliveries share a single
// stored message and each get their own request id.
func (g *Gateway) dispatchToSubscribers(from netip.AddrPort, msg *Message) {
	now := g.now()

	var stored *StoredMessage
	for _, key := range g.subscriptions.Keys(msg.TopicID) {
		qos := min(key.QoS, msg.QoS)

		for _, sub := range g.subscriptions.Subscribers(key) {
			if qos == QoS0 {
				g.send(sub, &PublishPacket{
					QoS:     QoS0,
					Retain:  msg.Retain,
					TopicID: msg.TopicID,
					Data:    msg.Payload,
				})
				g.metrics.dispatched(qos)
				continue
			}

			if stored == nil {
				var err error
				stored, err = g.pending.Store(msg.TopicID, msg.QoS, msg.Retain, msg.Payload)
				if err != nil {
					g.logger.Warn("cannot store message", LogFields{
						LogFieldTopicID: msg.TopicID,
						LogFieldError:   err.Error(),
					})
					return
				}
			}

			expected := MsgPUBACK
			if qos == QoS2 {
				expected = MsgPUBREC
			}

			id, err := g.pending.Track(sub, expected, stored, qos, now)
			if err != nil {
				g.logger.Warn("cannot track delivery", LogFields{
					LogFieldPeer:    sub.String(),
					LogFieldTopicID: msg.TopicID,
					LogFieldError:   err.Error(),
				})
				continue
			}

			g.send(sub, &PublishPacket{
				QoS:     qos,
				Retain:  msg.Retain,
				TopicID: msg.TopicID,
				MsgID:   id,
				Data:    stored.Data,
			})
			g.metrics.dispatched(qos)
		}
	}

	g.pending.Release(stored)
	g.metrics.gauge(MetricPendingRequests, g.pending.Len())

	if g.config.onPublish != nil {
		g.config.onPublish(from, msg)
	}
}

func (g *Gateway) handlePuback(rec *ClientRecord, p *PubackPacket) error {
	// QoS 0 deliveries are untracked; a rejection carries message id 0.
	if p.MsgID == 0 {
		if p.ReturnCode != RejectedInvalidTopicID {
			return ErrUnknownRequest
		}
		g.removeStaleSubscription(rec.Addr, p.TopicID)
		return nil
	}

	req, ok := g.pending.Get(p.MsgID)
	if !ok || req.Peer != rec.Addr {
		return ErrUnknownRequest
	}

	switch {
	case p.ReturnCode.IsAccepted():
		if !g.pending.Acknowledge(rec.Addr, p.MsgID, MsgPUBACK) {
			return ErrUnexpectedAck
		}

	case p.ReturnCode == RejectedInvalidTopicID:
		topicID := p.TopicID
		if req.Message != nil {
			topicID = req.Message.TopicID
		}
		g.pending.Remove(p.MsgID)
		g.removeStaleSubscription(rec.Addr, topicID)

	default:
		return inconsistency(MsgPUBACK, p.ReturnCode)
	}

	g.metrics.gauge(MetricPendingRequests, g.pending.Len())
	return nil
}

// removeStaleSubscription stops deliveries of topicID to a subscriber that
// no longer knows the topic.
func (g *Gateway) removeStaleSubscription(peer netip.AddrPort, topicID uint16) {
	if !g.subscriptions.Unsubscribe(peer, topicID) {
		return
	}
	g.metrics.gauge(MetricSubscriptions, g.subscriptions.Len())

	g.logger.Info("subscription removed", LogFields{
		LogFieldPeer:    peer.String(),
		LogFieldTopicID: topicID,
	})
}

func (g *Gateway) handlePubrec(rec *ClientRecord, p *PubrecPacket) error {
	if !g.pending.Advance(rec.Addr, p.MsgID, MsgPUBREC, MsgPUBCOMP, g.now()) {
		req, ok := g.pending.Get(p.MsgID)
		if !ok || req.Peer != rec.Addr {
			return ErrUnknownRequest
		}
		if req.Expected != MsgPUBCOMP {
			return ErrUnexpectedAck
		}
		// PUBREL was lost; answer the duplicate PUBREC again.
	}

	g.send(rec.Addr, &PubrelPacket{MsgID: p.MsgID})
	return nil
}

func (g *Gateway) handlePubcomp(rec *ClientRecord, p *PubcompPacket) error {
	if !g.pending.Acknowledge(rec.Addr, p.MsgID, MsgPUBCOMP) {
		if _, ok := g.pending.Get(p.MsgID); ok {
			return ErrUnexpectedAck
		}
		return ErrUnknownRequest
	}

	g.metrics.gauge(MetricPendingRequests, g.pending.Len())
	return nil
}

// retransmit resends deliveries that have not been acknowledged within the
// retransmission interval. A subscriber that exhausts its retries is marked
// lost and all of its deliveries are dropped.
func (g *Gateway) retransmit(now time.Time) {
	for _, req := range g.pending.Due(now, g.config.retransmissionInterval) {
		if _, ok := g.pending.Get(req.ID); !ok {
			continue
		}

		if req.Attempts-1 >= g.config.maxRetries {
			g.logger.Warn("delivery abandoned", LogFields{
				LogFieldPeer:     req.Peer.String(),
				LogFieldMsgID:    req.ID,
				LogFieldMsgType:  req.Expected.String(),
				LogFieldAttempts: req.Attempts,
			})

			g.pending.RemovePeer(req.Peer)
			if rec, ok := g.clients[req.Peer]; ok && rec.State != ClientDisconnected {
				g.setState(rec, ClientLost)
			}
			continue
		}

		req.Attempts++
		req.SentAt = now

		if req.Expected == MsgPUBCOMP {
			g.send(req.Peer, &PubrelPacket{MsgID: req.ID})
			g.metrics.retransmitted(MsgPUBREL)
			continue
		}

		g.send(req.Peer, &PublishPacket{
			DUP:     true,
			QoS:     req.QoS,
			Retain:  req.Message.Retain,
			TopicID: req.Message.TopicID,
			MsgID:   req.ID,
			Data:    req.Message.Data,
		})
		g.metrics.retransmitted(MsgPUBLISH)
	}

	g.metrics.gauge(MetricPendingRequests, g.pending.Len())
}

// publishWill fans out the will of a lost client, registering its topic if needed.
func (g *Gateway) publishWill(rec *ClientRecord) {
	will, ok := g.wills.TakeWill(rec.Addr)
	if !ok {
		return
	}

	id, code := g.topicFor(will.Topic)
	if !code.IsAccepted() {
		g.logger.Warn("will topic rejected", LogFields{
			LogFieldClientID:   rec.ClientID,
			LogFieldTopic:      will.Topic,
			LogFieldReturnCode: code.String(),
		})
		return
	}

	g.logger.Info("publishing will", LogFields{
		LogFieldClientID: rec.ClientID,
		LogFieldTopic:    will.Topic,
	})

	g.dispatchToSubscribers(rec.Addr, &Message{
		Topic:   SanitizeTopicName(will.Topic),
		TopicID: id,
		Payload: will.Payload,
		QoS:     will.QoS,
		Retain:  will.Retain,
	})
}
