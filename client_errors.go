package mqttsn

import (
	"errors"
	"net/netip"
)

// EventHandler receives client lifecycle events. It runs on the client loop
// and must not block.
type EventHandler func(client *Client, event error)

// Sentinel events for client lifecycle - check with errors.Is().
var (
	// ErrGatewaySelected is emitted when discovery picks a gateway.
	ErrGatewaySelected = errors.New("gateway selected")

	// ErrConnected is emitted when the gateway accepts CONNECT.
	ErrConnected = errors.New("connected")

	// ErrConnectionLost is emitted when a request exhausts its retransmissions.
	ErrConnectionLost = errors.New("connection lost")

	// ErrAsleep is emitted when the gateway confirms a sleep request.
	ErrAsleep = errors.New("asleep")

	// ErrDisconnected is emitted when the session ends.
	ErrDisconnected = errors.New("disconnected")
)

// Sentinel errors for operations - check with errors.Is().
var (
	// ErrNotConnected is returned when an operation requires an active session.
	ErrNotConnected = errors.New("mqttsn: not connected")

	// ErrSubscribeFailed is emitted when the gateway rejects a SUBSCRIBE.
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// GatewayEvent carries the gateway chosen by discovery or accepting CONNECT.
// Extract with errors.As().
type GatewayEvent struct {
	err       error
	Addr      netip.AddrPort
	GatewayID byte
}

func (e *GatewayEvent) Error() string { return e.err.Error() + ": " + e.Addr.String() }
func (e *GatewayEvent) Unwrap() error { return e.err }

// NewGatewayEvent creates a GatewayEvent wrapping event.
func NewGatewayEvent(event error, addr netip.AddrPort, gatewayID byte) *GatewayEvent {
	return &GatewayEvent{
		err:       event,
		Addr:      addr,
		GatewayID: gatewayID,
	}
}

// ConnectionLostEvent names the request whose retransmissions ran out.
// Extract with errors.As().
type ConnectionLostEvent struct {
	MsgType  MsgType
	MsgID    uint16
	Attempts int
}

func (e *ConnectionLostEvent) Error() string {
	return "connection lost: " + e.MsgType.String() + " unacknowledged"
}

func (e *ConnectionLostEvent) Unwrap() error { return ErrConnectionLost }

// SubscribeError contains details about a rejected subscription.
// Extract with errors.As().
type SubscribeError struct {
	Topic      string
	ReturnCode ReturnCode
}

func (e *SubscribeError) Error() string {
	return "subscribe failed: " + e.ReturnCode.String()
}

func (e *SubscribeError) Unwrap() error { return ErrSubscribeFailed }

// ErrInvalidSleepDuration is returned by Sleep for durations under one second.
var ErrInvalidSleepDuration = errors.New("mqttsn: sleep duration must be at least one second")
