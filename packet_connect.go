package mqttsn

import "io"

const (
	// ProtocolID is the only protocol id accepted in CONNECT.
	ProtocolID byte = 0x01

	// MaxClientIDLength is the longest client id allowed in CONNECT.
	MaxClientIDLength = 23

	connectFixedSize = 4
)

// ConnectPacket opens a session with a gateway.
// MQTT-SN v1.2: Section 5.4.4
type ConnectPacket struct {
	Will         bool
	CleanSession bool
	ProtocolID   byte
	// Duration is the keep-alive period in seconds.
	Duration uint16
	ClientID string
}

// Type returns the message type.
func (p *ConnectPacket) Type() MsgType { return MsgCONNECT }

// Encode writes the packet to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	flags := Flags{Will: p.Will, CleanSession: p.CleanSession}

	body := make([]byte, 0, connectFixedSize+len(p.ClientID))
	body = append(body, flags.encode(), p.ProtocolID)
	body = appendUint16(body, p.Duration)
	body = append(body, p.ClientID...)

	return encodeFrame(w, MsgCONNECT, body)
}

// Decode reads the packet from the reader.
// A foreign protocol id is not a decode error; the gateway answers it
// with REJECTED_NOT_SUPPORTED.
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgCONNECT {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if len(body) < connectFixedSize {
		return n, ErrShortBody
	}

	br := newBodyReader(body)
	flagByte, _ := br.readByte()
	flags := decodeFlags(flagByte)
	p.Will = flags.Will
	p.CleanSession = flags.CleanSession
	p.ProtocolID, _ = br.readByte()
	p.Duration, _ = br.readUint16()
	p.ClientID = string(br.rest())

	if err := validateClientID(p.ClientID); err != nil {
		return n, err
	}

	return n, nil
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if p.ProtocolID != ProtocolID {
		return ErrInvalidProtocolID
	}
	return validateClientID(p.ClientID)
}

func validateClientID(id string) error {
	if len(id) < 1 || len(id) > MaxClientIDLength {
		return ErrClientIDLength
	}
	return nil
}
