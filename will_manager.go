package mqttsn

import "net/netip"

// PublisherRecord holds the will and the buffered QoS 2 publishes of one
// publishing endpoint.
type PublisherRecord struct {
	Will *WillMessage

	// inflight holds QoS 2 payloads between PUBLISH and PUBREL, keyed by MsgID.
	inflight map[uint16]*Message
}

func (p *PublisherRecord) empty() bool {
	return p.Will == nil && len(p.inflight) == 0
}

// WillManager keeps publisher records keyed by endpoint. Records are created
// on demand and dropped once they hold neither a will nor buffered messages.
//
// WillManager is not safe for concurrent use.
type WillManager struct {
	publishers map[netip.AddrPort]*PublisherRecord
}

// NewWillManager creates an empty manager.
func NewWillManager() *WillManager {
	return &WillManager{
		publishers: make(map[netip.AddrPort]*PublisherRecord),
	}
}

func (m *WillManager) record(peer netip.AddrPort) *PublisherRecord {
	rec, ok := m.publishers[peer]
	if !ok {
		rec = &PublisherRecord{inflight: make(map[uint16]*Message)}
		m.publishers[peer] = rec
	}
	return rec
}

func (m *WillManager) compact(peer netip.AddrPort) {
	if rec, ok := m.publishers[peer]; ok && rec.empty() {
		delete(m.publishers, peer)
	}
}

// SetTopic sets the will topic of peer. An empty topic removes the will.
func (m *WillManager) SetTopic(peer netip.AddrPort, topic string, qos byte, retain bool) {
	if SanitizeTopicName(topic) == "" {
		m.ClearWill(peer)
		return
	}

	rec := m.record(peer)
	if rec.Will == nil {
		rec.Will = &WillMessage{}
	}
	rec.Will.Topic = topic
	rec.Will.QoS = qos
	rec.Will.Retain = retain
}

// SetMessage sets the will payload of peer. It is ignored if peer has no will topic.
func (m *WillManager) SetMessage(peer netip.AddrPort, payload []byte) bool {
	rec, ok := m.publishers[peer]
	if !ok || rec.Will == nil {
		return false
	}

	rec.Will.Payload = append([]byte(nil), payload...)
	return true
}

// Will returns the will of peer.
func (m *WillManager) Will(peer netip.AddrPort) (*WillMessage, bool) {
	rec, ok := m.publishers[peer]
	if !ok || rec.Will == nil {
		return nil, false
	}
	return rec.Will, true
}

// ClearWill removes the will of peer.
func (m *WillManager) ClearWill(peer netip.AddrPort) {
	if rec, ok := m.publishers[peer]; ok {
		rec.Will = nil
		m.compact(peer)
	}
}

// TakeWill removes and returns the will of peer.
func (m *WillManager) TakeWill(peer netip.AddrPort) (*WillMessage, bool) {
	will, ok := m.Will(peer)
	if ok {
		m.ClearWill(peer)
	}
	return will, ok
}

// Buffer stores a QoS 2 publish until its PUBREL. A duplicate msgID keeps the
// first payload and returns false.
func (m *WillManager) Buffer(peer netip.AddrPort, msgID uint16, msg *Message) bool {
	rec := m.record(peer)
	if _, ok := rec.inflight[msgID]; ok {
		return false
	}

	rec.inflight[msgID] = msg
	return true
}

// Release removes and returns the buffered publish msgID of peer.
func (m *WillManager) Release(peer netip.AddrPort, msgID uint16) (*Message, bool) {
	rec, ok := m.publishers[peer]
	if !ok {
		return nil, false
	}

	msg, ok := rec.inflight[msgID]
	if !ok {
		return nil, false
	}

	delete(rec.inflight, msgID)
	m.compact(peer)
	return msg, true
}

// Buffered returns the number of QoS 2 publishes held for peer.
func (m *WillManager) Buffered(peer netip.AddrPort) int {
	if rec, ok := m.publishers[peer]; ok {
		return len(rec.inflight)
	}
	return 0
}

// ClearBuffered drops every QoS 2 publish held for peer.
func (m *WillManager) ClearBuffered(peer netip.AddrPort) {
	if rec, ok := m.publishers[peer]; ok {
		clear(rec.inflight)
		m.compact(peer)
	}
}

// Remove drops the whole record of peer.
func (m *WillManager) Remove(peer netip.AddrPort) {
	delete(m.publishers, peer)
}

// Len returns the number of publisher records.
func (m *WillManager) Len() int {
	return len(m.publishers)
}
