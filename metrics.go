package mqttsn

import "strconv"

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Add adds the given value to the gauge.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

// Standard metric names.
const (
	// MetricPacketsReceived is the total number of decoded frames.
	MetricPacketsReceived = "mqttsn_packets_received_total"

	// MetricPacketsSent is the total number of frames sent.
	MetricPacketsSent = "mqttsn_packets_sent_total"

	// MetricPacketsDropped is the total number of inbound frames dropped.
	MetricPacketsDropped = "mqttsn_packets_dropped_total"

	// MetricRetransmissions is the total number of retransmitted frames.
	MetricRetransmissions = "mqttsn_retransmissions_total"

	// MetricMessagesDispatched is the total number of fan-out deliveries.
	MetricMessagesDispatched = "mqttsn_messages_dispatched_total"

	// MetricClients is the number of client records per state.
	MetricClients = "mqttsn_clients"

	// MetricSubscriptions is the current number of subscriptions.
	MetricSubscriptions = "mqttsn_subscriptions"

	// MetricTopics is the number of registered topic ids.
	MetricTopics = "mqttsn_topics"

	// MetricPendingRequests is the number of unacknowledged deliveries.
	MetricPendingRequests = "mqttsn_pending_requests"
)

// Standard metric labels.
const (
	LabelMsgType = "msg_type"
	LabelQoS     = "qos"
	LabelReason  = "reason"
	LabelState   = "state"
)

// Drop reasons recorded under LabelReason.
const (
	dropMalformed = "malformed"
	dropOffline   = "offline"
	dropState     = "state"
	dropStale     = "stale"
	dropSelf      = "self"
	dropCongested = "congested"
	dropInconsist = "inconsistent"
)

// engineMetrics provides convenience methods shared by the gateway and the client.
type engineMetrics struct {
	metrics Metrics
}

func newEngineMetrics(m Metrics) engineMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return engineMetrics{metrics: m}
}

func (e engineMetrics) received(t MsgType) {
	e.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelMsgType: t.String()}).Inc()
}

func (e engineMetrics) sent(t MsgType) {
	e.metrics.Counter(MetricPacketsSent, MetricLabels{LabelMsgType: t.String()}).Inc()
}

func (e engineMetrics) dropped(reason string) {
	e.metrics.Counter(MetricPacketsDropped, MetricLabels{LabelReason: reason}).Inc()
}

func (e engineMetrics) retransmitted(t MsgType) {
	e.metrics.Counter(MetricRetransmissions, MetricLabels{LabelMsgType: t.String()}).Inc()
}

func (e engineMetrics) dispatched(qos byte) {
	e.metrics.Counter(MetricMessagesDispatched, MetricLabels{LabelQoS: strconv.Itoa(int(qos))}).Inc()
}

func (e engineMetrics) gauge(name string, value int) {
	e.metrics.Gauge(name, nil).Set(float64(value))
}

func (e engineMetrics) clients(state string, value int) {
	e.metrics.Gauge(MetricClients, MetricLabels{LabelState: state}).Set(float64(value))
}
