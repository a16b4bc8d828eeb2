package mqttsn

import "io"

// AdvertisePacket is broadcast periodically by an online gateway.
// MQTT-SN v1.2: Section 5.4.1
type AdvertisePacket struct {
	GatewayID byte
	// Duration is the number of seconds until the next ADVERTISE.
	Duration uint16
}

// Type returns the message type.
func (p *AdvertisePacket) Type() MsgType { return MsgADVERTISE }

// Encode writes the packet to the writer.
func (p *AdvertisePacket) Encode(w io.Writer) (int, error) {
	body := appendUint16([]byte{p.GatewayID}, p.Duration)
	return encodeFrame(w, MsgADVERTISE, body)
}

// Decode reads the packet from the reader.
func (p *AdvertisePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgADVERTISE {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if err := expectBodySize(body, 3); err != nil {
		return n, err
	}

	br := newBodyReader(body)
	p.GatewayID, _ = br.readByte()
	p.Duration, _ = br.readUint16()

	return n, nil
}

// Validate validates the packet contents.
func (p *AdvertisePacket) Validate() error {
	return nil
}
