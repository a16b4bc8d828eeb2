package mqttsn

import "io"

// GwInfoPacket answers a SEARCHGW.
// GatewayAddress is only present when the sender is a client relaying
// gateway information it learned earlier.
// MQTT-SN v1.2: Section 5.4.3
type GwInfoPacket struct {
	GatewayID      byte
	GatewayAddress []byte
}

// Type returns the message type.
func (p *GwInfoPacket) Type() MsgType { return MsgGWINFO }

// Encode writes the packet to the writer.
func (p *GwInfoPacket) Encode(w io.Writer) (int, error) {
	body := make([]byte, 0, 1+len(p.GatewayAddress))
	body = append(body, p.GatewayID)
	body = append(body, p.GatewayAddress...)
	return encodeFrame(w, MsgGWINFO, body)
}

// Decode reads the packet from the reader.
func (p *GwInfoPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgGWINFO {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := newBodyReader(body)
	if p.GatewayID, err = br.readByte(); err != nil {
		return n, err
	}
	p.GatewayAddress = br.rest()

	return n, nil
}

// Validate validates the packet contents.
func (p *GwInfoPacket) Validate() error {
	return nil
}
