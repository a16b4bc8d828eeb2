package mqttsn

import "io"

// PingreqPacket is a keep-alive probe. A sleeping client sets ClientID to
// ask the gateway for buffered messages.
// MQTT-SN v1.2: Section 5.4.19
type PingreqPacket struct {
	ClientID string
}

// Type returns the message type.
func (p *PingreqPacket) Type() MsgType { return MsgPINGREQ }

// Encode writes the packet to the writer.
func (p *PingreqPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeFrame(w, MsgPINGREQ, []byte(p.ClientID))
}

// Decode reads the packet from the reader.
func (p *PingreqPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgPINGREQ {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	p.ClientID = string(body)
	return n, p.Validate()
}

// Validate validates the packet contents.
func (p *PingreqPacket) Validate() error {
	if len(p.ClientID) > MaxClientIDLength {
		return ErrClientIDLength
	}
	return nil
}

// PingrespPacket answers PINGREQ.
// MQTT-SN v1.2: Section 5.4.20
type PingrespPacket struct{}

// Type returns the message type.
func (p *PingrespPacket) Type() MsgType { return MsgPINGRESP }

// Encode writes the packet to the writer.
func (p *PingrespPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgPINGRESP, nil)
}

// Decode reads the packet from the reader.
func (p *PingrespPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(r, header, MsgPINGRESP)
}

// Validate validates the packet contents.
func (p *PingrespPacket) Validate() error { return nil }
