// Package prommetrics exports engine metrics to Prometheus.
package prommetrics

import (
	"net/http"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/vitalvas/mqttsn"
)

var help = map[string]string{
	mqttsn.MetricPacketsReceived:    "The total number of decoded MQTT-SN frames.",
	mqttsn.MetricPacketsSent:        "The total number of MQTT-SN frames sent.",
	mqttsn.MetricPacketsDropped:     "The total number of inbound frames dropped.",
	mqttsn.MetricRetransmissions:    "The total number of retransmitted frames.",
	mqttsn.MetricMessagesDispatched: "The total number of messages delivered to subscribers.",
	mqttsn.MetricClients:            "The number of client records per state.",
	mqttsn.MetricSubscriptions:      "The current number of subscriptions.",
	mqttsn.MetricTopics:             "The number of registered topic ids.",
	mqttsn.MetricPendingRequests:    "The number of unacknowledged deliveries.",
}

// Option configures Metrics.
type Option func(*Metrics)

// WithRuntimeMetrics also registers the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(m *Metrics) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// Metrics implements mqttsn.Metrics on a private Prometheus registry.
// Vectors are created on first use; the label names of that first call are
// fixed for the metric.
type Metrics struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// New creates Metrics.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Counter returns the counter for name and labels.
func (m *Metrics) Counter(name string, labels mqttsn.MetricLabels) mqttsn.Counter {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: helpFor(name),
		}, labelNames(labels))
		m.registry.MustRegister(vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	return &counter{c: vec.With(prometheus.Labels(labels))}
}

// Gauge returns the gauge for name and labels.
func (m *Metrics) Gauge(name string, labels mqttsn.MetricLabels) mqttsn.Gauge {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: helpFor(name),
		}, labelNames(labels))
		m.registry.MustRegister(vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()

	return &gauge{g: vec.With(prometheus.Labels(labels))}
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

func labelNames(labels mqttsn.MetricLabels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

type counter struct {
	c prometheus.Counter
}

func (c *counter) Inc()              { c.c.Inc() }
func (c *counter) Add(delta float64) { c.c.Add(delta) }

func (c *counter) Value() float64 {
	var out dto.Metric
	if err := c.c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}

type gauge struct {
	g prometheus.Gauge
}

func (g *gauge) Set(value float64) { g.g.Set(value) }
func (g *gauge) Inc()              { g.g.Inc() }
func (g *gauge) Dec()              { g.g.Dec() }
func (g *gauge) Add(delta float64) { g.g.Add(delta) }

func (g *gauge) Value() float64 {
	var out dto.Metric
	if err := g.g.Write(&out); err != nil {
		return 0
	}
	return out.GetGauge().GetValue()
}
