package mqttsn

import "io"

// DisconnectPacket ends a session, or puts the client to sleep when
// Duration is non-zero.
// MQTT-SN v1.2: Section 5.4.21
type DisconnectPacket struct {
	// Duration is the sleep duration in seconds. Zero omits the field.
	Duration uint16
}

// Type returns the message type.
func (p *DisconnectPacket) Type() MsgType { return MsgDISCONNECT }

// Encode writes the packet to the writer.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) {
	if p.Duration == 0 {
		return encodeFrame(w, MsgDISCONNECT, nil)
	}
	return encodeFrame(w, MsgDISCONNECT, appendUint16(nil, p.Duration))
}

// Decode reads the packet from the reader.
func (p *DisconnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgDISCONNECT {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	switch len(body) {
	case 0:
		p.Duration = 0
	case 2:
		p.Duration, _ = newBodyReader(body).readUint16()
	default:
		return n, ErrLengthMismatch
	}

	return n, nil
}

// Validate validates the packet contents.
func (p *DisconnectPacket) Validate() error { return nil }
