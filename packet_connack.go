package mqttsn

import "io"

// ConnackPacket answers CONNECT.
// MQTT-SN v1.2: Section 5.4.5
type ConnackPacket struct {
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *ConnackPacket) Type() MsgType { return MsgCONNACK }

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeReturnCodeAck(w, MsgCONNACK, p.ReturnCode)
}

// Decode reads the packet from the reader.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	code, n, err := decodeReturnCodeAck(r, header, MsgCONNACK)
	p.ReturnCode = code
	return n, err
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
