package mqttsn

import (
	"cmp"
	"net/netip"
	"slices"
	"time"
)

// StoredMessage is a payload shared by every delivery of one fan-out event.
// It is dropped once no PendingRequest references it.
type StoredMessage struct {
	// ID is the message id, unique among stored messages.
	ID      uint16
	TopicID uint16
	QoS     byte
	Retain  bool
	Data    []byte

	refs int
}

// PendingRequest is one acknowledgement the gateway expects from a peer.
type PendingRequest struct {
	// ID is the request id, used as the MsgID on the wire.
	ID   uint16
	Peer netip.AddrPort
	// Expected is the message type that completes the current step.
	Expected MsgType
	// QoS is the delivery QoS for this peer.
	QoS      byte
	Message  *StoredMessage
	SentAt   time.Time
	Attempts int
}

// PendingTracker keeps in-flight deliveries and the stored messages they
// reference. It never retransmits on its own; the gateway does that.
//
// PendingTracker is not safe for concurrent use.
type PendingTracker struct {
	requestIDs *IDManager
	messageIDs *IDManager
	requests   map[uint16]*PendingRequest
	messages   map[uint16]*StoredMessage
}

// NewPendingTracker creates an empty tracker with its own request and
// message id spaces.
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{
		requestIDs: NewIDManager(),
		messageIDs: NewIDManager(),
		requests:   make(map[uint16]*PendingRequest),
		messages:   make(map[uint16]*StoredMessage),
	}
}

// Store creates a stored message with a fresh message id.
func (t *PendingTracker) Store(topicID uint16, qos byte, retain bool, data []byte) (*StoredMessage, error) {
	id, err := t.messageIDs.Allocate()
	if err != nil {
		return nil, err
	}

	msg := &StoredMessage{
		ID:      id,
		TopicID: topicID,
		QoS:     qos,
		Retain:  retain,
		Data:    data,
	}
	t.messages[id] = msg

	return msg, nil
}

// Track records a request sent to peer and returns its request id.
func (t *PendingTracker) Track(peer netip.AddrPort, expected MsgType, msg *StoredMessage, qos byte, now time.Time) (uint16, error) {
	id, err := t.requestIDs.Allocate()
	if err != nil {
		return 0, err
	}

	if msg != nil {
		msg.refs++
	}

	t.requests[id] = &PendingRequest{
		ID:       id,
		Peer:     peer,
		Expected: expected,
		QoS:      qos,
		Message:  msg,
		SentAt:   now,
		Attempts: 1,
	}

	return id, nil
}

// Acknowledge completes request id when it belongs to peer and expects
// actual. The request is removed on success.
func (t *PendingTracker) Acknowledge(peer netip.AddrPort, id uint16, actual MsgType) bool {
	req, ok := t.lookup(peer, id)
	if !ok || req.Expected != actual {
		return false
	}

	t.remove(req)
	return true
}

// Advance moves request id to its next step without changing the id.
func (t *PendingTracker) Advance(peer netip.AddrPort, id uint16, current, next MsgType, now time.Time) bool {
	req, ok := t.lookup(peer, id)
	if !ok || req.Expected != current {
		return false
	}

	req.Expected = next
	req.SentAt = now
	req.Attempts = 1
	return true
}

// Get returns request id.
func (t *PendingTracker) Get(id uint16) (*PendingRequest, bool) {
	req, ok := t.requests[id]
	return req, ok
}

// Remove drops request id regardless of its state.
func (t *PendingTracker) Remove(id uint16) bool {
	req, ok := t.requests[id]
	if !ok {
		return false
	}

	t.remove(req)
	return true
}

// RemovePeer drops every request addressed to peer.
func (t *PendingTracker) RemovePeer(peer netip.AddrPort) int {
	var removed int
	for _, req := range t.requests {
		if req.Peer == peer {
			t.remove(req)
			removed++
		}
	}
	return removed
}

// Release drops msg if no request references it.
func (t *PendingTracker) Release(msg *StoredMessage) {
	if msg == nil || msg.refs > 0 {
		return
	}

	if _, ok := t.messages[msg.ID]; ok {
		delete(t.messages, msg.ID)
		_ = t.messageIDs.Release(msg.ID)
	}
}

// Due returns the requests sent before now-interval, ordered by id.
func (t *PendingTracker) Due(now time.Time, interval time.Duration) []*PendingRequest {
	var due []*PendingRequest
	for _, req := range t.requests {
		if now.Sub(req.SentAt) >= interval {
			due = append(due, req)
		}
	}

	slices.SortFunc(due, func(a, b *PendingRequest) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return due
}

// Len returns the number of outstanding requests.
func (t *PendingTracker) Len() int {
	return len(t.requests)
}

// StoredLen returns the number of stored messages.
func (t *PendingTracker) StoredLen() int {
	return len(t.messages)
}

func (t *PendingTracker) lookup(peer netip.AddrPort, id uint16) (*PendingRequest, bool) {
	req, ok := t.requests[id]
	if !ok || req.Peer != peer {
		return nil, false
	}
	return req, true
}

func (t *PendingTracker) remove(req *PendingRequest) {
	delete(t.requests, req.ID)
	_ = t.requestIDs.Release(req.ID)

	if req.Message != nil {
		req.Message.refs--
		t.Release(req.Message)
	}
}
