package mqttsn

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package matches one of them
// with errors.Is.
var (
	// ErrProtocolViolation covers malformed frames. Such frames are dropped.
	ErrProtocolViolation = errors.New("mqttsn: protocol violation")

	// ErrResourceExhausted is returned when an identifier space or the client
	// table is full. Peers see it as REJECTED_CONGESTION.
	ErrResourceExhausted = errors.New("mqttsn: resource exhausted")

	// ErrStateViolation covers acknowledgements that reference an unknown or
	// type-mismatched request. Usually a stale retransmission.
	ErrStateViolation = errors.New("mqttsn: state violation")

	// ErrProtocolInconsistency is a return code outside the set expected for
	// a given response. Fatal only in strict mode.
	ErrProtocolInconsistency = errors.New("mqttsn: protocol inconsistency")
)

// Codec errors.
var (
	ErrMalformedLength    = fmt.Errorf("%w: malformed length field", ErrProtocolViolation)
	ErrLengthMismatch     = fmt.Errorf("%w: length field does not match datagram size", ErrProtocolViolation)
	ErrUnknownMessageType = fmt.Errorf("%w: unknown message type", ErrProtocolViolation)
	ErrInvalidProtocolID  = fmt.Errorf("%w: unsupported protocol id", ErrProtocolViolation)
	ErrClientIDLength     = fmt.Errorf("%w: client id length out of range", ErrProtocolViolation)
	ErrInvalidQoS         = fmt.Errorf("%w: invalid QoS level", ErrProtocolViolation)
	ErrInvalidTopicIDType = fmt.Errorf("%w: invalid topic id type", ErrProtocolViolation)
	ErrInvalidReturnCode  = fmt.Errorf("%w: invalid return code", ErrProtocolViolation)
	ErrPacketTooLarge     = fmt.Errorf("%w: frame exceeds maximum length", ErrProtocolViolation)
	ErrShortBody          = fmt.Errorf("%w: body shorter than required", ErrProtocolViolation)
)

// Registry errors.
var (
	ErrIDExhausted   = fmt.Errorf("%w: no identifiers available", ErrResourceExhausted)
	ErrTableFull     = fmt.Errorf("%w: client table is full", ErrResourceExhausted)
	ErrIDNotFound    = errors.New("mqttsn: identifier not in use")
	ErrTopicNotFound = errors.New("mqttsn: topic not registered")
	ErrEmptyTopic    = errors.New("mqttsn: empty topic name")
)

// Engine errors.
var (
	ErrUnknownRequest   = fmt.Errorf("%w: unknown request", ErrStateViolation)
	ErrUnexpectedAck    = fmt.Errorf("%w: acknowledgement type does not match request", ErrStateViolation)
	ErrUnexpectedState  = fmt.Errorf("%w: message not allowed in current state", ErrStateViolation)
	ErrEngineRunning    = errors.New("mqttsn: engine already running")
	ErrEngineNotRunning = errors.New("mqttsn: engine not running")
	ErrNoTransport      = errors.New("mqttsn: no transport configured")
	ErrTransportClosed  = errors.New("mqttsn: transport closed")
)

// inconsistency builds a ProtocolInconsistency error for an unexpected return code.
func inconsistency(msgType MsgType, code ReturnCode) error {
	return fmt.Errorf("%w: %s carried %s", ErrProtocolInconsistency, msgType, code)
}

// dropFrame logs a handler error and counts the dropped frame. Only a
// protocol inconsistency in strict mode is returned.
func dropFrame(logger Logger, metrics engineMetrics, strict bool, fields LogFields, err error) error {
	fields[LogFieldError] = err.Error()

	switch {
	case errors.Is(err, ErrProtocolInconsistency):
		metrics.dropped(dropInconsist)
		if strict {
			logger.Error("protocol inconsistency", fields)
			return err
		}
		logger.Warn("protocol inconsistency", fields)

	case errors.Is(err, ErrUnexpectedState):
		metrics.dropped(dropState)
		logger.Debug("frame not allowed in current state", fields)

	case errors.Is(err, ErrStateViolation):
		metrics.dropped(dropStale)
		logger.Debug("stale acknowledgement", fields)

	default:
		metrics.dropped(dropMalformed)
		logger.Debug("frame dropped", fields)
	}

	return nil
}
