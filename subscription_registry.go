package mqttsn

import (
	"cmp"
	"net/netip"
	"slices"
)

// SubscriptionKey identifies one fan-out group.
type SubscriptionKey struct {
	TopicID uint16
	QoS     byte
}

// SubscriptionRegistry maps (topic id, QoS) groups to subscriber endpoints.
// A subscriber holds at most one QoS per topic id, and a group exists only
// while it has at least one member.
//
// SubscriptionRegistry is not safe for concurrent use.
type SubscriptionRegistry struct {
	groups map[SubscriptionKey]map[netip.AddrPort]struct{}
	// qosIndex lists the QoS levels with a non-empty group per topic id.
	qosIndex map[uint16]map[byte]struct{}
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		groups:   make(map[SubscriptionKey]map[netip.AddrPort]struct{}),
		qosIndex: make(map[uint16]map[byte]struct{}),
	}
}

// Subscribe adds subscriber to the (topicID, qos) group, first removing any
// subscription it holds to topicID at another QoS.
func (r *SubscriptionRegistry) Subscribe(subscriber netip.AddrPort, topicID uint16, qos byte) {
	if current, ok := r.Find(subscriber, topicID); ok {
		if current == qos {
			return
		}
		r.remove(subscriber, SubscriptionKey{TopicID: topicID, QoS: current})
	}

	key := SubscriptionKey{TopicID: topicID, QoS: qos}
	group, ok := r.groups[key]
	if !ok {
		group = make(map[netip.AddrPort]struct{})
		r.groups[key] = group
	}
	group[subscriber] = struct{}{}

	levels, ok := r.qosIndex[topicID]
	if !ok {
		levels = make(map[byte]struct{})
		r.qosIndex[topicID] = levels
	}
	levels[qos] = struct{}{}
}

// Unsubscribe removes the subscription of subscriber to topicID.
// Returns false if there was none.
func (r *SubscriptionRegistry) Unsubscribe(subscriber netip.AddrPort, topicID uint16) bool {
	qos, ok := r.Find(subscriber, topicID)
	if !ok {
		return false
	}

	r.remove(subscriber, SubscriptionKey{TopicID: topicID, QoS: qos})
	return true
}

// UnsubscribeAll removes every subscription of subscriber and returns how
// many were removed.
func (r *SubscriptionRegistry) UnsubscribeAll(subscriber netip.AddrPort) int {
	var removed int
	for key, group := range r.groups {
		if _, ok := group[subscriber]; ok {
			r.remove(subscriber, key)
			removed++
		}
	}
	return removed
}

func (r *SubscriptionRegistry) remove(subscriber netip.AddrPort, key SubscriptionKey) {
	group, ok := r.groups[key]
	if !ok {
		return
	}

	delete(group, subscriber)
	if len(group) > 0 {
		return
	}

	delete(r.groups, key)

	levels := r.qosIndex[key.TopicID]
	delete(levels, key.QoS)
	if len(levels) == 0 {
		delete(r.qosIndex, key.TopicID)
	}
}

// Find returns the QoS at which subscriber is subscribed to topicID.
func (r *SubscriptionRegistry) Find(subscriber netip.AddrPort, topicID uint16) (byte, bool) {
	for qos := range r.qosIndex[topicID] {
		if _, ok := r.groups[SubscriptionKey{TopicID: topicID, QoS: qos}][subscriber]; ok {
			return qos, true
		}
	}
	return 0, false
}

// Keys returns the non-empty groups of topicID ordered by QoS.
func (r *SubscriptionRegistry) Keys(topicID uint16) []SubscriptionKey {
	levels := r.qosIndex[topicID]
	keys := make([]SubscriptionKey, 0, len(levels))
	for qos := range levels {
		keys = append(keys, SubscriptionKey{TopicID: topicID, QoS: qos})
	}
	slices.SortFunc(keys, func(a, b SubscriptionKey) int {
		return cmp.Compare(a.QoS, b.QoS)
	})
	return keys
}

// Subscribers returns the members of a group ordered by address.
func (r *SubscriptionRegistry) Subscribers(key SubscriptionKey) []netip.AddrPort {
	group := r.groups[key]
	out := make([]netip.AddrPort, 0, len(group))
	for sub := range group {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b netip.AddrPort) int {
		return a.Compare(b)
	})
	return out
}

// Len returns the total number of subscriptions.
func (r *SubscriptionRegistry) Len() int {
	var n int
	for _, group := range r.groups {
		n += len(group)
	}
	return n
}
