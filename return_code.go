package mqttsn

// ReturnCode is the status octet carried by CONNACK, REGACK, PUBACK, SUBACK,
// WILLTOPICRESP and WILLMSGRESP.
type ReturnCode byte

// Return codes as defined in MQTT-SN v1.2 section 5.3.10.
const (
	Accepted               ReturnCode = 0x00
	RejectedCongestion     ReturnCode = 0x01
	RejectedInvalidTopicID ReturnCode = 0x02
	RejectedNotSupported   ReturnCode = 0x03
)

// String returns the string representation of the return code.
func (c ReturnCode) String() string {
	switch c {
	case Accepted:
		return "ACCEPTED"
	case RejectedCongestion:
		return "REJECTED_CONGESTION"
	case RejectedInvalidTopicID:
		return "REJECTED_INVALID_TOPIC_ID"
	case RejectedNotSupported:
		return "REJECTED_NOT_SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the code is one of the defined return codes.
func (c ReturnCode) Valid() bool {
	return c <= RejectedNotSupported
}

// IsAccepted returns true for ACCEPTED.
func (c ReturnCode) IsAccepted() bool {
	return c == Accepted
}
