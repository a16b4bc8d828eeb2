package mqttsn

import (
	"net/netip"
	"time"
)

// clientConfig holds configuration for a Client.
type clientConfig struct {
	transport Transport

	// Session settings
	clientID     string
	keepAlive    time.Duration
	cleanSession bool
	will         *WillMessage

	// Gateway discovery. A valid gateway skips SEARCHGW.
	gateway        netip.AddrPort
	searchInterval time.Duration
	searchRadius   byte

	// Retransmission
	retransmissionInterval time.Duration
	maxAttempts            map[MsgType]int
	defaultMaxAttempts     int
	waitingInterval        time.Duration

	// Publisher schedule
	fixture              Fixture
	registrationInterval time.Duration
	publishInterval      time.Duration

	strict  bool
	logger  Logger
	metrics Metrics

	onEvent   EventHandler
	onMessage func(msg *Message)
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		keepAlive:              60 * time.Second,
		cleanSession:           true,
		searchInterval:         5 * time.Second,
		searchRadius:           1,
		retransmissionInterval: 10 * time.Second,
		maxAttempts:            make(map[MsgType]int),
		defaultMaxAttempts:     5,
		waitingInterval:        5 * time.Second,
		registrationInterval:   10 * time.Second,
		publishInterval:        10 * time.Second,
		logger:                 NewNoOpLogger(),
		metrics:                &NoOpMetrics{},
	}
}

func (c *clientConfig) attemptsFor(t MsgType) int {
	if n, ok := c.maxAttempts[t]; ok {
		return n
	}
	return c.defaultMaxAttempts
}

// Option configures a Client.
type Option func(*clientConfig)

// WithTransport sets the datagram transport.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) {
		c.transport = t
	}
}

// WithClientID sets the client identifier. A random one is generated when unset.
func WithClientID(id string) Option {
	return func(c *clientConfig) {
		c.clientID = id
	}
}

// WithKeepAlive sets the keep-alive period announced in CONNECT.
func WithKeepAlive(d time.Duration) Option {
	return func(c *clientConfig) {
		c.keepAlive = d
	}
}

// WithCleanSession sets the clean session flag of CONNECT.
func WithCleanSession(clean bool) Option {
	return func(c *clientConfig) {
		c.cleanSession = clean
	}
}

// WithWill sets the will the gateway publishes if the client is lost.
func WithWill(topic string, payload []byte, retain bool, qos byte) Option {
	return func(c *clientConfig) {
		c.will = &WillMessage{
			Topic:   topic,
			Payload: payload,
			QoS:     qos,
			Retain:  retain,
		}
	}
}

// WithGateway connects straight to addr instead of searching for a gateway.
func WithGateway(addr netip.AddrPort) Option {
	return func(c *clientConfig) {
		c.gateway = addr
	}
}

// WithSearchGateway sets the SEARCHGW period and broadcast radius.
func WithSearchGateway(interval time.Duration, radius byte) Option {
	return func(c *clientConfig) {
		c.searchInterval = interval
		c.searchRadius = radius
	}
}

// WithRetransmissionInterval sets how long a request waits for its
// acknowledgement before it is sent again.
func WithRetransmissionInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.retransmissionInterval = d
	}
}

// WithMaxAttempts sets how many times a request of type t is sent before the
// gateway is considered lost.
func WithMaxAttempts(t MsgType, n int) Option {
	return func(c *clientConfig) {
		c.maxAttempts[t] = n
	}
}

// WithDefaultMaxAttempts sets the attempt limit for types without their own.
func WithDefaultMaxAttempts(n int) Option {
	return func(c *clientConfig) {
		c.defaultMaxAttempts = n
	}
}

// WithWaitingInterval sets the back-off after a congestion rejection.
func WithWaitingInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.waitingInterval = d
	}
}

// WithFixture sets the topics and payloads the client registers and publishes.
func WithFixture(f Fixture) Option {
	return func(c *clientConfig) {
		c.fixture = f
	}
}

// WithPublishSchedule sets the registration and publish periods.
func WithPublishSchedule(registration, publish time.Duration) Option {
	return func(c *clientConfig) {
		c.registrationInterval = registration
		c.publishInterval = publish
	}
}

// WithStrictMode makes Run return on the first protocol inconsistency.
func WithStrictMode(strict bool) Option {
	return func(c *clientConfig) {
		c.strict = strict
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(c *clientConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// OnEvent sets the lifecycle event handler. Handlers run on the client loop
// and must not call Client methods synchronously.
func OnEvent(handler EventHandler) Option {
	return func(c *clientConfig) {
		c.onEvent = handler
	}
}

// OnMessage sets the handler for messages delivered to subscriptions.
// It runs on the client loop.
func OnMessage(handler func(msg *Message)) Option {
	return func(c *clientConfig) {
		c.onMessage = handler
	}
}
