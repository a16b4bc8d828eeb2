package mqttsn

import (
	"fmt"
)

type retransmitKey struct {
	msgType MsgType
	msgID   uint16
}

func (k retransmitKey) timer() string {
	return fmt.Sprintf("retransmit/%s/%d", k.msgType, k.msgID)
}

type retransmitEntry struct {
	key      retransmitKey
	packet   Packet
	attempts int
}

// retransmissions resends unacknowledged client requests, keyed by message
// type and message id. A request that reaches its attempt limit makes the
// client give up on the gateway.
type retransmissions struct {
	client  *Client
	entries map[string]*retransmitEntry
}

func newRetransmissions(c *Client) *retransmissions {
	return &retransmissions{
		client:  c,
		entries: make(map[string]*retransmitEntry),
	}
}

// start sends packet and arms its retransmission timer.
func (r *retransmissions) start(packet Packet, msgID uint16) {
	key := retransmitKey{msgType: packet.Type(), msgID: msgID}
	name := key.timer()

	r.entries[name] = &retransmitEntry{
		key:      key,
		packet:   packet,
		attempts: 1,
	}

	r.client.send(packet)
	r.client.loop.timers.schedule(name, r.client.config.retransmissionInterval)
}

// ack completes the request and reports whether it was outstanding.
func (r *retransmissions) ack(t MsgType, msgID uint16) bool {
	name := retransmitKey{msgType: t, msgID: msgID}.timer()
	if _, ok := r.entries[name]; !ok {
		return false
	}

	delete(r.entries, name)
	r.client.loop.timers.cancel(name)
	return true
}

func (r *retransmissions) pending(t MsgType, msgID uint16) bool {
	_, ok := r.entries[retransmitKey{msgType: t, msgID: msgID}.timer()]
	return ok
}

func (r *retransmissions) cancel(t MsgType, msgID uint16) {
	r.ack(t, msgID)
}

// cancelType drops every request of type t.
func (r *retransmissions) cancelType(t MsgType) {
	for name, entry := range r.entries {
		if entry.key.msgType == t {
			delete(r.entries, name)
			r.client.loop.timers.cancel(name)
		}
	}
}

func (r *retransmissions) clear() {
	for name := range r.entries {
		r.client.loop.timers.cancel(name)
	}
	clear(r.entries)
}

func (r *retransmissions) len() int {
	return len(r.entries)
}

// fire handles an expired retransmission timer.
func (r *retransmissions) fire(name string) {
	entry, ok := r.entries[name]
	if !ok {
		return
	}

	c := r.client
	if entry.attempts >= c.config.attemptsFor(entry.key.msgType) {
		delete(r.entries, name)

		// An unanswered DISCONNECT still ends the session locally.
		if entry.key.msgType == MsgDISCONNECT && c.disconnecting {
			_ = c.handleDisconnect()
			return
		}

		c.lost(entry.key.msgType, entry.key.msgID, entry.attempts)
		return
	}

	entry.attempts++
	markDuplicate(entry.packet)

	c.send(entry.packet)
	c.metrics.retransmitted(entry.key.msgType)
	c.loop.timers.schedule(name, c.config.retransmissionInterval)
}

func markDuplicate(packet Packet) {
	switch p := packet.(type) {
	case *PublishPacket:
		p.DUP = true
	case *SubscribePacket:
		p.DUP = true
	}
}
