package mqttsn

import (
	"math/rand/v2"
)

// registrationAttempt is the REGISTER in flight or the one to repeat.
type registrationAttempt struct {
	name  string
	msgID uint16
	retry bool
}

// publishAttempt is the fixture publish in flight or the one to repeat.
// At most one QoS 1 or 2 publish is outstanding at a time.
type publishAttempt struct {
	name     string
	item     FixtureItem
	msgID    uint16
	retry    bool
	inflight bool
}

// nextUnregistered returns the first fixture topic without a topic id.
func (c *Client) nextUnregistered() (string, bool) {
	for _, name := range c.config.fixture.Topics() {
		if _, ok := c.topicIDs[SanitizeTopicName(name)]; !ok {
			return name, true
		}
	}
	return "", false
}

func (c *Client) sendRegistration() {
	if c.state != SessionActive || c.registration.msgID != 0 {
		return
	}

	name := c.registration.name
	if !c.registration.retry {
		var ok bool
		if name, ok = c.nextUnregistered(); !ok {
			c.loop.timers.schedule(timerRegister, c.config.registrationInterval)
			return
		}
	}

	msgID, err := c.nextMsgID()
	if err != nil {
		c.logger.Warn("no message id for REGISTER", LogFields{LogFieldError: err.Error()})
		c.loop.timers.schedule(timerRegister, c.config.waitingInterval)
		return
	}

	c.registration = registrationAttempt{name: name, msgID: msgID, retry: true}
	c.retries.start(&RegisterPacket{MsgID: msgID, TopicName: name}, msgID)
}

func (c *Client) handleRegack(p *RegackPacket) error {
	if p.MsgID != c.registration.msgID || !c.retries.ack(MsgREGISTER, p.MsgID) {
		return ErrUnknownRequest
	}

	c.releaseMsgID(p.MsgID)
	c.registration.msgID = 0

	switch {
	case p.ReturnCode == RejectedCongestion:
		c.registration.retry = true
		c.loop.timers.schedule(timerRegister, c.config.waitingInterval)
		return nil

	case p.ReturnCode == RejectedNotSupported:
		c.registration.retry = false
		c.loop.timers.schedule(timerRegister, c.config.waitingInterval)
		return nil

	case p.ReturnCode != Accepted || p.TopicID == 0:
		c.registration.retry = false
		c.loop.timers.schedule(timerRegister, c.config.registrationInterval)
		return inconsistency(MsgREGACK, p.ReturnCode)
	}

	c.learnTopic(c.registration.name, p.TopicID)
	c.registration.retry = false
	c.loop.timers.schedule(timerRegister, c.config.registrationInterval)

	c.logger.Debug("topic registered", LogFields{
		LogFieldTopic:   c.registration.name,
		LogFieldTopicID: p.TopicID,
	})
	return nil
}

func (c *Client) learnTopic(name string, id uint16) {
	name = SanitizeTopicName(name)
	if old, ok := c.topicIDs[name]; ok && old != id {
		delete(c.topicNames, old)
	}
	c.topicIDs[name] = id
	c.topicNames[id] = name
}

func (c *Client) forgetTopic(id uint16) (string, bool) {
	name, ok := c.topicNames[id]
	if !ok {
		return "", false
	}
	delete(c.topicNames, id)
	delete(c.topicIDs, name)
	return name, true
}

// registeredFixtureTopics lists fixture topics with a known topic id.
func (c *Client) registeredFixtureTopics() []string {
	var out []string
	for _, name := range c.config.fixture.Topics() {
		if _, ok := c.topicIDs[SanitizeTopicName(name)]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (c *Client) sendPublish() {
	if c.state != SessionActive || c.publish.inflight {
		return
	}

	if !c.publish.retry {
		topics := c.registeredFixtureTopics()
		if len(topics) == 0 {
			c.loop.timers.schedule(timerPublish, c.config.publishInterval)
			return
		}

		name := topics[rand.IntN(len(topics))]
		items := c.config.fixture[name]
		c.publish = publishAttempt{name: name, item: items[rand.IntN(len(items))]}
	}

	topicID, ok := c.topicIDs[SanitizeTopicName(c.publish.name)]
	if !ok {
		// Waiting for the topic to be registered again.
		c.loop.timers.schedule(timerPublish, c.config.waitingInterval)
		return
	}

	packet := &PublishPacket{
		QoS:         c.publish.item.QoS,
		Retain:      c.publish.item.Retain,
		TopicIDType: TopicIDNormal,
		TopicID:     topicID,
		Data:        []byte(c.publish.item.Message),
	}

	if packet.QoS == QoS0 {
		c.send(packet)
		c.publish.retry = false
		c.loop.timers.schedule(timerPublish, c.config.publishInterval)
		return
	}

	msgID, err := c.nextMsgID()
	if err != nil {
		c.logger.Warn("no message id for PUBLISH", LogFields{LogFieldError: err.Error()})
		c.loop.timers.schedule(timerPublish, c.config.waitingInterval)
		return
	}

	packet.MsgID = msgID
	c.publish.msgID = msgID
	c.publish.retry = true
	c.publish.inflight = true
	c.retries.start(packet, msgID)
}

// retryPublish repeats the last publish after the waiting interval.
func (c *Client) retryPublish() {
	c.releaseMsgID(c.publish.msgID)
	c.publish.msgID = 0
	c.publish.inflight = false
	c.publish.retry = true
	c.loop.timers.schedule(timerPublish, c.config.waitingInterval)
}

func (c *Client) finishPublish() {
	c.releaseMsgID(c.publish.msgID)
	c.publish = publishAttempt{}
	c.loop.timers.schedule(timerPublish, c.config.publishInterval)
}

// suspendRequests abandons the in-flight keep-alive, registration and
// publish before the client falls asleep. The registration and publish are
// repeated once the session is active again.
func (c *Client) suspendRequests() {
	for _, t := range []MsgType{MsgPINGREQ, MsgREGISTER, MsgPUBLISH, MsgPUBREL} {
		c.retries.cancelType(t)
	}

	if c.registration.msgID != 0 {
		c.releaseMsgID(c.registration.msgID)
		c.registration.msgID = 0
	}
	if c.publish.inflight {
		c.releaseMsgID(c.publish.msgID)
		c.publish.msgID = 0
		c.publish.inflight = false
		c.publish.retry = true
	}
}

// forceRegistration drops the cached id of name and registers it again at once.
func (c *Client) forceRegistration(name string) {
	if id, ok := c.topicIDs[SanitizeTopicName(name)]; ok {
		c.forgetTopic(id)
	}

	if c.registration.msgID != 0 {
		c.retries.cancel(MsgREGISTER, c.registration.msgID)
		c.releaseMsgID(c.registration.msgID)
	}
	c.loop.timers.cancel(timerRegister)

	c.registration = registrationAttempt{name: name, retry: true}
	c.sendRegistration()
}

func (c *Client) handlePuback(p *PubackPacket) error {
	// A QoS 0 publish to an unknown topic id is rejected with MsgID 0.
	if p.MsgID == 0 {
		if p.ReturnCode != RejectedInvalidTopicID {
			return ErrUnknownRequest
		}
		if name, ok := c.topicNames[p.TopicID]; ok {
			c.forceRegistration(name)
		}
		return nil
	}

	if !c.publish.inflight || p.MsgID != c.publish.msgID || !c.retries.ack(MsgPUBLISH, p.MsgID) {
		return ErrUnknownRequest
	}

	switch p.ReturnCode {
	case RejectedInvalidTopicID:
		c.forceRegistration(c.publish.name)
		c.retryPublish()
		return nil

	case RejectedCongestion:
		c.retryPublish()
		return nil

	case Accepted:
		c.finishPublish()
		return nil
	}

	c.finishPublish()
	return inconsistency(MsgPUBACK, p.ReturnCode)
}

func (c *Client) handlePubrec(p *PubrecPacket) error {
	if c.retries.ack(MsgPUBLISH, p.MsgID) {
		c.retries.start(&PubrelPacket{MsgID: p.MsgID}, p.MsgID)
		return nil
	}

	// PUBREL lost on the way; answer the repeated PUBREC.
	if c.retries.pending(MsgPUBREL, p.MsgID) {
		c.send(&PubrelPacket{MsgID: p.MsgID})
		return nil
	}

	return ErrUnknownRequest
}

func (c *Client) handlePubcomp(p *PubcompPacket) error {
	if !c.retries.ack(MsgPUBREL, p.MsgID) {
		return ErrUnknownRequest
	}

	c.finishPublish()
	return nil
}
