package mqttsn

import (
	"net/netip"
	"time"
)

// GatewayOption configures a Gateway.
type GatewayOption func(*gatewayConfig)

type gatewayConfig struct {
	transport Transport
	gatewayID byte

	onlineInterval  time.Duration
	offlineInterval time.Duration

	advertiseInterval      time.Duration
	activeCheckInterval    time.Duration
	asleepCheckInterval    time.Duration
	clearInterval          time.Duration
	maxInactivity          time.Duration
	retransmissionInterval time.Duration
	maxRetries             int

	maxClients   int
	publishRate  float64
	publishBurst int

	strict  bool
	logger  Logger
	metrics Metrics

	onPublish     func(from netip.AddrPort, msg *Message)
	onClientState func(info ClientInfo)
}

func defaultGatewayConfig() *gatewayConfig {
	return &gatewayConfig{
		gatewayID:              1,
		advertiseInterval:      60 * time.Second,
		activeCheckInterval:    10 * time.Second,
		asleepCheckInterval:    10 * time.Second,
		clearInterval:          60 * time.Second,
		maxInactivity:          5 * time.Minute,
		retransmissionInterval: 10 * time.Second,
		maxRetries:             3,
		maxClients:             100,
		logger:                 NewNoOpLogger(),
		metrics:                &NoOpMetrics{},
	}
}

// WithGatewayTransport sets the datagram transport.
func WithGatewayTransport(t Transport) GatewayOption {
	return func(c *gatewayConfig) {
		c.transport = t
	}
}

// WithGatewayID sets the id announced in ADVERTISE and GWINFO.
// Hosts running several gateways take ids from a GatewayIDAllocator.
func WithGatewayID(id byte) GatewayOption {
	return func(c *gatewayConfig) {
		c.gatewayID = id
	}
}

// WithStateIntervals sets how long the gateway stays ONLINE and OFFLINE
// before switching. A zero online interval keeps the gateway online; a zero
// offline interval brings it online as soon as it starts.
func WithStateIntervals(online, offline time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.onlineInterval = online
		c.offlineInterval = offline
	}
}

// WithAdvertiseInterval sets the ADVERTISE broadcast period.
func WithAdvertiseInterval(d time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.advertiseInterval = d
	}
}

// WithActiveClientsCheckInterval sets the keep-alive sweep period.
func WithActiveClientsCheckInterval(d time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.activeCheckInterval = d
	}
}

// WithAsleepClientsCheckInterval sets the sleep-duration sweep period.
func WithAsleepClientsCheckInterval(d time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.asleepCheckInterval = d
	}
}

// WithClientsClearInterval sets the period of the purge sweep.
func WithClientsClearInterval(d time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.clearInterval = d
	}
}

// WithMaximumInactivityTime sets how long LOST and DISCONNECTED clients are
// kept before they are purged.
func WithMaximumInactivityTime(d time.Duration) GatewayOption {
	return func(c *gatewayConfig) {
		c.maxInactivity = d
	}
}

// WithRetransmission sets the retransmission period for unacknowledged
// deliveries and the number of retries before a subscriber is marked lost.
func WithRetransmission(interval time.Duration, maxRetries int) GatewayOption {
	return func(c *gatewayConfig) {
		c.retransmissionInterval = interval
		c.maxRetries = maxRetries
	}
}

// WithMaximumClients sets the client table capacity.
func WithMaximumClients(n int) GatewayOption {
	return func(c *gatewayConfig) {
		c.maxClients = n
	}
}

// WithPublishRateLimit caps inbound publishes per second. Zero disables the limit.
func WithPublishRateLimit(perSecond float64, burst int) GatewayOption {
	return func(c *gatewayConfig) {
		c.publishRate = perSecond
		c.publishBurst = burst
	}
}

// WithGatewayStrictMode makes Serve return on the first protocol inconsistency
// instead of logging and dropping the frame.
func WithGatewayStrictMode(strict bool) GatewayOption {
	return func(c *gatewayConfig) {
		c.strict = strict
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l Logger) GatewayOption {
	return func(c *gatewayConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGatewayMetrics sets the metrics collector.
func WithGatewayMetrics(m Metrics) GatewayOption {
	return func(c *gatewayConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// OnPublish sets a callback invoked for every message dispatched to subscribers.
func OnPublish(fn func(from netip.AddrPort, msg *Message)) GatewayOption {
	return func(c *gatewayConfig) {
		c.onPublish = fn
	}
}

// OnClientState sets a callback invoked whenever a client record changes state.
func OnClientState(fn func(info ClientInfo)) GatewayOption {
	return func(c *gatewayConfig) {
		c.onClientState = fn
	}
}
