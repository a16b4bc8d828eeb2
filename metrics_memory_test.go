package mqttsn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryMetrics(t *testing.T) {
	t.Run("counter operations", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		counter := metrics.Counter("test_counter", nil)

		counter.Inc()
		assert.Equal(t, float64(1), counter.Value())

		counter.Add(5)
		assert.Equal(t, float64(6), counter.Value())

		counter.Add(0.5)
		assert.Equal(t, float64(6.5), counter.Value())
	})

	t.Run("gauge operations", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		gauge := metrics.Gauge("test_gauge", nil)

		gauge.Set(100)
		assert.Equal(t, float64(100), gauge.Value())

		gauge.Inc()
		assert.Equal(t, float64(101), gauge.Value())

		gauge.Dec()
		assert.Equal(t, float64(100), gauge.Value())

		gauge.Add(-30)
		assert.Equal(t, float64(70), gauge.Value())
	})

	t.Run("metrics with labels", func(t *testing.T) {
		metrics := NewMemoryMetrics()

		connects := metrics.Counter(MetricPacketsReceived, MetricLabels{LabelMsgType: "CONNECT"})
		publishes := metrics.Counter(MetricPacketsReceived, MetricLabels{LabelMsgType: "PUBLISH"})

		connects.Inc()
		connects.Inc()
		publishes.Inc()

		assert.Equal(t, float64(2), connects.Value())
		assert.Equal(t, float64(1), publishes.Value())
	})

	t.Run("same metric returns same instance", func(t *testing.T) {
		metrics := NewMemoryMetrics()

		counter1 := metrics.Counter("test", nil)
		counter1.Inc()

		counter2 := metrics.Counter("test", nil)
		assert.Equal(t, float64(1), counter2.Value())

		counter2.Inc()
		assert.Equal(t, float64(2), counter1.Value())
	})

	t.Run("values for testing", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		metrics.Counter("test", MetricLabels{"a": "1"}).Inc()
		metrics.Gauge("test", nil).Set(42)

		assert.Equal(t, float64(1), metrics.CounterValue("test", MetricLabels{"a": "1"}))
		assert.Equal(t, float64(0), metrics.CounterValue("nonexistent", nil))
		assert.Equal(t, float64(42), metrics.GaugeValue("test", nil))
		assert.Equal(t, float64(0), metrics.GaugeValue("nonexistent", nil))
	})
}

func TestMemoryMetricsConcurrency(t *testing.T) {
	metrics := NewMemoryMetrics()
	counter := metrics.Counter("concurrent", nil)
	gauge := metrics.Gauge("concurrent", nil)

	var wg sync.WaitGroup

	for range 100 {
		wg.Add(2)

		go func() {
			defer wg.Done()
			counter.Inc()
		}()

		go func() {
			defer wg.Done()
			gauge.Inc()
		}()
	}

	wg.Wait()

	assert.Equal(t, float64(100), counter.Value())
	assert.Equal(t, float64(100), gauge.Value())
}

func TestLabelsKey(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		assert.Equal(t, "test", labelsKey("test", nil))
	})

	t.Run("with empty labels", func(t *testing.T) {
		assert.Equal(t, "test", labelsKey("test", MetricLabels{}))
	})

	t.Run("label order does not matter", func(t *testing.T) {
		a := labelsKey("test", MetricLabels{"a": "1", "b": "2"})
		b := labelsKey("test", MetricLabels{"b": "2", "a": "1"})
		assert.Equal(t, a, b)
		assert.Contains(t, a, "a=1")
	})
}

func BenchmarkMemoryCounter(b *testing.B) {
	metrics := NewMemoryMetrics()
	counter := metrics.Counter("bench", nil)

	b.ResetTimer()
	for range b.N {
		counter.Inc()
	}
}
