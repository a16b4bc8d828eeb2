package mqttsn

import (
	"fmt"
	"io"
)

// MsgType represents an MQTT-SN message type.
type MsgType byte

// MQTT-SN message types as defined in the protocol specification v1.2.
const (
	MsgADVERTISE     MsgType = 0x00
	MsgSEARCHGW      MsgType = 0x01
	MsgGWINFO        MsgType = 0x02
	MsgCONNECT       MsgType = 0x04
	MsgCONNACK       MsgType = 0x05
	MsgWILLTOPICREQ  MsgType = 0x06
	MsgWILLTOPIC     MsgType = 0x07
	MsgWILLMSGREQ    MsgType = 0x08
	MsgWILLMSG       MsgType = 0x09
	MsgREGISTER      MsgType = 0x0A
	MsgREGACK        MsgType = 0x0B
	MsgPUBLISH       MsgType = 0x0C
	MsgPUBACK        MsgType = 0x0D
	MsgPUBCOMP       MsgType = 0x0E
	MsgPUBREC        MsgType = 0x0F
	MsgPUBREL        MsgType = 0x10
	MsgSUBSCRIBE     MsgType = 0x12
	MsgSUBACK        MsgType = 0x13
	MsgUNSUBSCRIBE   MsgType = 0x14
	MsgUNSUBACK      MsgType = 0x15
	MsgPINGREQ       MsgType = 0x16
	MsgPINGRESP      MsgType = 0x17
	MsgDISCONNECT    MsgType = 0x18
	MsgWILLTOPICUPD  MsgType = 0x1A
	MsgWILLTOPICRESP MsgType = 0x1B
	MsgWILLMSGUPD    MsgType = 0x1C
	MsgWILLMSGRESP   MsgType = 0x1D
)

var msgTypeNames = map[MsgType]string{
	MsgADVERTISE:     "ADVERTISE",
	MsgSEARCHGW:      "SEARCHGW",
	MsgGWINFO:        "GWINFO",
	MsgCONNECT:       "CONNECT",
	MsgCONNACK:       "CONNACK",
	MsgWILLTOPICREQ:  "WILLTOPICREQ",
	MsgWILLTOPIC:     "WILLTOPIC",
	MsgWILLMSGREQ:    "WILLMSGREQ",
	MsgWILLMSG:       "WILLMSG",
	MsgREGISTER:      "REGISTER",
	MsgREGACK:        "REGACK",
	MsgPUBLISH:       "PUBLISH",
	MsgPUBACK:        "PUBACK",
	MsgPUBCOMP:       "PUBCOMP",
	MsgPUBREC:        "PUBREC",
	MsgPUBREL:        "PUBREL",
	MsgSUBSCRIBE:     "SUBSCRIBE",
	MsgSUBACK:        "SUBACK",
	MsgUNSUBSCRIBE:   "UNSUBSCRIBE",
	MsgUNSUBACK:      "UNSUBACK",
	MsgPINGREQ:       "PINGREQ",
	MsgPINGRESP:      "PINGRESP",
	MsgDISCONNECT:    "DISCONNECT",
	MsgWILLTOPICUPD:  "WILLTOPICUPD",
	MsgWILLTOPICRESP: "WILLTOPICRESP",
	MsgWILLMSGUPD:    "WILLMSGUPD",
	MsgWILLMSGRESP:   "WILLMSGRESP",
}

// String returns the string representation of the message type.
func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
}

// Valid returns true if the message type is known.
func (t MsgType) Valid() bool {
	_, ok := msgTypeNames[t]
	return ok
}

const (
	// lengthEscape marks the 3-octet form of the length field.
	lengthEscape = 0x01

	// shortLengthLimit is the smallest total length that needs the 3-octet form.
	shortLengthLimit = 256

	shortHeaderSize = 2
	longHeaderSize  = 4

	// MaxFrameLength is the largest frame the 3-octet length form can describe.
	MaxFrameLength = 65535
)

// FixedHeader holds the length prefix and message type that start every frame.
// Length is the total frame length and includes the header octets.
type FixedHeader struct {
	Length  uint16
	MsgType MsgType
}

// newFixedHeader computes the header for a body of the given size.
func newFixedHeader(msgType MsgType, bodyLen int) (FixedHeader, error) {
	total := bodyLen + shortHeaderSize
	if total >= shortLengthLimit {
		total += longHeaderSize - shortHeaderSize
	}

	if total > MaxFrameLength {
		return FixedHeader{}, ErrPacketTooLarge
	}

	return FixedHeader{Length: uint16(total), MsgType: msgType}, nil
}

// Size returns the encoded size of the header in bytes.
func (h *FixedHeader) Size() int {
	if h.Length >= shortLengthLimit {
		return longHeaderSize
	}
	return shortHeaderSize
}

// BodyLength returns the number of octets that follow the header.
func (h *FixedHeader) BodyLength() int {
	return int(h.Length) - h.Size()
}

// Encode writes the header to the writer.
// Returns the number of bytes written.
func (h *FixedHeader) Encode(w io.Writer) (int, error) {
	if !h.MsgType.Valid() {
		return 0, ErrUnknownMessageType
	}

	if h.Length < shortLengthLimit {
		return w.Write([]byte{byte(h.Length), byte(h.MsgType)})
	}

	// Extended length is stored low octet first.
	return w.Write([]byte{lengthEscape, byte(h.Length), byte(h.Length >> 8), byte(h.MsgType)})
}

// Decode reads the header from the reader.
// Returns the number of bytes read.
func (h *FixedHeader) Decode(r io.Reader) (int, error) {
	var buf [3]byte
	n, err := io.ReadFull(r, buf[:1])
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMalformedLength, err)
	}

	if buf[0] == lengthEscape {
		n2, err := io.ReadFull(r, buf[1:3])
		n += n2
		if err != nil {
			return n, fmt.Errorf("%w: %w", ErrMalformedLength, err)
		}
		h.Length = uint16(buf[2])<<8 | uint16(buf[1])
		// The 3-octet form is only valid for frames the 1-octet form cannot describe.
		if h.Length < shortLengthLimit {
			return n, ErrMalformedLength
		}
	} else {
		h.Length = uint16(buf[0])
		if h.Length < shortHeaderSize {
			return n, ErrMalformedLength
		}
	}

	n2, err := io.ReadFull(r, buf[:1])
	n += n2
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMalformedLength, err)
	}

	h.MsgType = MsgType(buf[0])
	if !h.MsgType.Valid() {
		return n, ErrUnknownMessageType
	}

	return n, nil
}
