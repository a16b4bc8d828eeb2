package mqttsn

import "io"

// RegisterPacket asks the peer to map a topic name to a topic id.
// Clients send it with TopicID 0; gateways send it with the assigned id.
// MQTT-SN v1.2: Section 5.4.10
type RegisterPacket struct {
	TopicID   uint16
	MsgID     uint16
	TopicName string
}

// Type returns the message type.
func (p *RegisterPacket) Type() MsgType { return MsgREGISTER }

// GetMsgID returns the message identifier.
func (p *RegisterPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *RegisterPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *RegisterPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	body := make([]byte, 0, 4+len(p.TopicName))
	body = appendUint16(body, p.TopicID)
	body = appendUint16(body, p.MsgID)
	body = append(body, p.TopicName...)

	return encodeFrame(w, MsgREGISTER, body)
}

// Decode reads the packet from the reader.
func (p *RegisterPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgREGISTER {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := newBodyReader(body)
	if p.TopicID, err = br.readUint16(); err != nil {
		return n, err
	}
	if p.MsgID, err = br.readUint16(); err != nil {
		return n, err
	}
	p.TopicName = string(br.rest())

	return n, nil
}

// Validate validates the packet contents.
// Empty names are answered with REJECTED_NOT_SUPPORTED by the gateway, so
// they are not rejected here.
func (p *RegisterPacket) Validate() error {
	return nil
}

// RegackPacket answers REGISTER.
// MQTT-SN v1.2: Section 5.4.11
type RegackPacket struct {
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *RegackPacket) Type() MsgType { return MsgREGACK }

// GetMsgID returns the message identifier.
func (p *RegackPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *RegackPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *RegackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	body := make([]byte, 0, 5)
	body = appendUint16(body, p.TopicID)
	body = appendUint16(body, p.MsgID)
	body = append(body, byte(p.ReturnCode))

	return encodeFrame(w, MsgREGACK, body)
}

// Decode reads the packet from the reader.
func (p *RegackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgREGACK {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if err := expectBodySize(body, 5); err != nil {
		return n, err
	}

	br := newBodyReader(body)
	p.TopicID, _ = br.readUint16()
	p.MsgID, _ = br.readUint16()
	code, _ := br.readByte()
	p.ReturnCode = ReturnCode(code)

	return n, nil
}

// Validate validates the packet contents.
func (p *RegackPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
