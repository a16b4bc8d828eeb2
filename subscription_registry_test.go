package mqttsn

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	peerA = netip.MustParseAddrPort("10.0.0.1:1883")
	peerB = netip.MustParseAddrPort("10.0.0.2:1883")
	peerC = netip.MustParseAddrPort("10.0.0.3:1883")
)

func TestSubscriptionRegistry(t *testing.T) {
	t.Run("subscribe and find", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS1)

		qos, ok := r.Find(peerA, 1)
		require.True(t, ok)
		assert.Equal(t, QoS1, qos)

		_, ok = r.Find(peerB, 1)
		assert.False(t, ok)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("one qos per topic", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS0)
		r.Subscribe(peerA, 1, QoS2)

		qos, ok := r.Find(peerA, 1)
		require.True(t, ok)
		assert.Equal(t, QoS2, qos)
		assert.Equal(t, 1, r.Len())
		assert.Equal(t, []SubscriptionKey{{TopicID: 1, QoS: QoS2}}, r.Keys(1))
	})

	t.Run("resubscribe at same qos is idempotent", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS1)
		r.Subscribe(peerA, 1, QoS1)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("keys ordered by qos", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS2)
		r.Subscribe(peerB, 1, QoS0)
		r.Subscribe(peerC, 1, QoS1)
		r.Subscribe(peerC, 2, QoS1)

		assert.Equal(t, []SubscriptionKey{
			{TopicID: 1, QoS: QoS0},
			{TopicID: 1, QoS: QoS1},
			{TopicID: 1, QoS: QoS2},
		}, r.Keys(1))
		assert.Empty(t, r.Keys(3))
	})

	t.Run("subscribers ordered by address", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerC, 1, QoS1)
		r.Subscribe(peerA, 1, QoS1)
		r.Subscribe(peerB, 1, QoS1)

		assert.Equal(t, []netip.AddrPort{peerA, peerB, peerC}, r.Subscribers(SubscriptionKey{TopicID: 1, QoS: QoS1}))
		assert.Empty(t, r.Subscribers(SubscriptionKey{TopicID: 1, QoS: QoS0}))
	})

	t.Run("empty groups are removed", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS1)

		assert.True(t, r.Unsubscribe(peerA, 1))
		assert.False(t, r.Unsubscribe(peerA, 1))
		assert.Empty(t, r.Keys(1))
		assert.Empty(t, r.groups)
		assert.Empty(t, r.qosIndex)
	})

	t.Run("unsubscribe all", func(t *testing.T) {
		r := NewSubscriptionRegistry()
		r.Subscribe(peerA, 1, QoS0)
		r.Subscribe(peerA, 2, QoS1)
		r.Subscribe(peerA, 3, QoS2)
		r.Subscribe(peerB, 2, QoS1)

		assert.Equal(t, 3, r.UnsubscribeAll(peerA))
		assert.Equal(t, 1, r.Len())
		assert.Equal(t, []netip.AddrPort{peerB}, r.Subscribers(SubscriptionKey{TopicID: 2, QoS: QoS1}))
		assert.Zero(t, r.UnsubscribeAll(peerA))
	})
}
