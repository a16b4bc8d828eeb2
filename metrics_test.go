package mqttsn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpMetrics(t *testing.T) {
	m := &NoOpMetrics{}

	t.Run("counter", func(t *testing.T) {
		c := m.Counter("test", nil)
		c.Inc()
		c.Add(10)
		assert.Zero(t, c.Value())
	})

	t.Run("gauge", func(t *testing.T) {
		g := m.Gauge("test", MetricLabels{"key": "value"})
		g.Set(5)
		g.Inc()
		g.Dec()
		g.Add(3)
		assert.Zero(t, g.Value())
	})
}

func TestEngineMetrics(t *testing.T) {
	t.Run("nil falls back to no-op", func(_ *testing.T) {
		e := newEngineMetrics(nil)
		e.received(MsgPUBLISH)
		e.gauge(MetricTopics, 3)
	})

	t.Run("frame counters", func(t *testing.T) {
		m := NewMemoryMetrics()
		e := newEngineMetrics(m)

		e.received(MsgPUBLISH)
		e.received(MsgPUBLISH)
		e.sent(MsgPUBACK)
		e.retransmitted(MsgPUBLISH)

		assert.InDelta(t, 2, m.CounterValue(MetricPacketsReceived, MetricLabels{LabelMsgType: "PUBLISH"}), 0)
		assert.InDelta(t, 1, m.CounterValue(MetricPacketsSent, MetricLabels{LabelMsgType: "PUBACK"}), 0)
		assert.InDelta(t, 1, m.CounterValue(MetricRetransmissions, MetricLabels{LabelMsgType: "PUBLISH"}), 0)
	})

	t.Run("drops by reason", func(t *testing.T) {
		m := NewMemoryMetrics()
		e := newEngineMetrics(m)

		e.dropped(dropMalformed)
		e.dropped(dropMalformed)
		e.dropped(dropCongested)

		assert.InDelta(t, 2, m.CounterValue(MetricPacketsDropped, MetricLabels{LabelReason: "malformed"}), 0)
		assert.InDelta(t, 1, m.CounterValue(MetricPacketsDropped, MetricLabels{LabelReason: "congested"}), 0)
		assert.Zero(t, m.CounterValue(MetricPacketsDropped, MetricLabels{LabelReason: "stale"}))
	})

	t.Run("dispatch by qos", func(t *testing.T) {
		m := NewMemoryMetrics()
		e := newEngineMetrics(m)

		e.dispatched(QoS1)
		e.dispatched(QoS2)
		e.dispatched(QoS2)

		assert.InDelta(t, 1, m.CounterValue(MetricMessagesDispatched, MetricLabels{LabelQoS: "1"}), 0)
		assert.InDelta(t, 2, m.CounterValue(MetricMessagesDispatched, MetricLabels{LabelQoS: "2"}), 0)
	})

	t.Run("gauges", func(t *testing.T) {
		m := NewMemoryMetrics()
		e := newEngineMetrics(m)

		e.gauge(MetricSubscriptions, 4)
		e.gauge(MetricSubscriptions, 2)
		e.clients(ClientActive.String(), 3)

		assert.InDelta(t, 2, m.GaugeValue(MetricSubscriptions, nil), 0)
		assert.InDelta(t, 3, m.GaugeValue(MetricClients, MetricLabels{LabelState: ClientActive.String()}), 0)
	})
}
