package mqttsn

// Subscribe asks the gateway for messages published to topic. Deliveries go
// to the OnMessage handler at up to qos.
func (c *Client) Subscribe(topic string, qos byte) error {
	return c.call(func() error { return c.subscribe(topic, qos) })
}

// Unsubscribe cancels a subscription made with Subscribe.
func (c *Client) Unsubscribe(topic string) error {
	return c.call(func() error { return c.unsubscribe(topic) })
}

func (c *Client) subscribe(topic string, qos byte) error {
	if c.state != SessionActive {
		return ErrNotConnected
	}
	if !validQoS(qos) {
		return ErrInvalidQoS
	}
	if SanitizeTopicName(topic) == "" {
		return ErrEmptyTopic
	}

	msgID, err := c.nextMsgID()
	if err != nil {
		return err
	}

	c.pendingTopics[msgID] = topic
	c.retries.start(&SubscribePacket{
		QoS:         qos,
		TopicIDType: TopicIDNormal,
		MsgID:       msgID,
		TopicName:   topic,
	}, msgID)
	return nil
}

func (c *Client) unsubscribe(topic string) error {
	if c.state != SessionActive {
		return ErrNotConnected
	}
	if SanitizeTopicName(topic) == "" {
		return ErrEmptyTopic
	}

	msgID, err := c.nextMsgID()
	if err != nil {
		return err
	}

	c.pendingTopics[msgID] = topic
	c.retries.start(&UnsubscribePacket{
		TopicIDType: TopicIDNormal,
		MsgID:       msgID,
		TopicName:   topic,
	}, msgID)
	return nil
}

func (c *Client) handleSuback(p *SubackPacket) error {
	if !c.retries.ack(MsgSUBSCRIBE, p.MsgID) {
		return ErrUnknownRequest
	}

	topic := c.pendingTopics[p.MsgID]
	delete(c.pendingTopics, p.MsgID)
	c.releaseMsgID(p.MsgID)

	if !p.ReturnCode.Valid() {
		return inconsistency(MsgSUBACK, p.ReturnCode)
	}

	if !p.ReturnCode.IsAccepted() {
		c.logger.Warn("subscription rejected", LogFields{
			LogFieldTopic:      topic,
			LogFieldReturnCode: p.ReturnCode.String(),
		})
		c.emit(&SubscribeError{Topic: topic, ReturnCode: p.ReturnCode})
		return nil
	}

	c.learnTopic(topic, p.TopicID)
	c.subscriptions[p.TopicID] = p.QoS

	c.logger.Debug("subscribed", LogFields{
		LogFieldTopic:   topic,
		LogFieldTopicID: p.TopicID,
		LogFieldQoS:     p.QoS,
	})
	return nil
}

func (c *Client) handleUnsuback(p *UnsubackPacket) error {
	if !c.retries.ack(MsgUNSUBSCRIBE, p.MsgID) {
		return ErrUnknownRequest
	}

	topic := c.pendingTopics[p.MsgID]
	delete(c.pendingTopics, p.MsgID)
	c.releaseMsgID(p.MsgID)

	if id, ok := c.topicIDs[SanitizeTopicName(topic)]; ok {
		delete(c.subscriptions, id)
	}
	return nil
}

// handlePublish receives a delivery from the gateway. QoS 2 deliveries are
// held until PUBREL so each reaches the handler once.
func (c *Client) handlePublish(p *PublishPacket) error {
	name, ok := c.topicNames[p.TopicID]
	if _, subscribed := c.subscriptions[p.TopicID]; !ok || !subscribed {
		if p.QoS > QoS0 || p.MsgID != 0 {
			c.send(&PubackPacket{
				TopicID:    p.TopicID,
				MsgID:      p.MsgID,
				ReturnCode: RejectedInvalidTopicID,
			})
		}
		return nil
	}

	msg := &Message{
		Topic:     name,
		TopicID:   p.TopicID,
		Payload:   p.Data,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Duplicate: p.DUP,
	}

	switch p.QoS {
	case QoS0:
		c.deliver(msg)

	case QoS1:
		c.deliver(msg)
		c.send(&PubackPacket{TopicID: p.TopicID, MsgID: p.MsgID, ReturnCode: Accepted})

	case QoS2:
		if _, seen := c.receivedQoS2[p.MsgID]; !seen {
			c.receivedQoS2[p.MsgID] = msg
		}
		c.send(&PubrecPacket{MsgID: p.MsgID})
	}

	return nil
}

func (c *Client) handlePubrel(p *PubrelPacket) error {
	if msg, ok := c.receivedQoS2[p.MsgID]; ok {
		delete(c.receivedQoS2, p.MsgID)
		c.deliver(msg)
	}

	c.send(&PubcompPacket{MsgID: p.MsgID})
	return nil
}

func (c *Client) deliver(msg *Message) {
	if c.config.onMessage != nil {
		c.config.onMessage(msg)
	}
}
