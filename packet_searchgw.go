package mqttsn

import "io"

// SearchGwPacket is broadcast by a client looking for a gateway.
// MQTT-SN v1.2: Section 5.4.2
type SearchGwPacket struct {
	// Radius is the broadcast radius, used as the IP TTL.
	Radius byte
}

// Type returns the message type.
func (p *SearchGwPacket) Type() MsgType { return MsgSEARCHGW }

// Encode writes the packet to the writer.
func (p *SearchGwPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgSEARCHGW, []byte{p.Radius})
}

// Decode reads the packet from the reader.
func (p *SearchGwPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgSEARCHGW {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if err := expectBodySize(body, 1); err != nil {
		return n, err
	}

	p.Radius = body[0]
	return n, nil
}

// Validate validates the packet contents.
func (p *SearchGwPacket) Validate() error {
	return nil
}
