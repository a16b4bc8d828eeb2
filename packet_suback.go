package mqttsn

import "io"

// SubackPacket answers SUBSCRIBE with the granted QoS and topic id.
// MQTT-SN v1.2: Section 5.4.16
type SubackPacket struct {
	QoS        byte
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *SubackPacket) Type() MsgType { return MsgSUBACK }

// GetMsgID returns the message identifier.
func (p *SubackPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *SubackPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	flags := Flags{QoS: p.QoS}

	body := make([]byte, 0, 6)
	body = append(body, flags.encode())
	body = appendUint16(body, p.TopicID)
	body = appendUint16(body, p.MsgID)
	body = append(body, byte(p.ReturnCode))

	return encodeFrame(w, MsgSUBACK, body)
}

// Decode reads the packet from the reader.
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgSUBACK {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if err := expectBodySize(body, 6); err != nil {
		return n, err
	}

	br := newBodyReader(body)
	flagByte, _ := br.readByte()
	p.QoS = decodeFlags(flagByte).QoS
	p.TopicID, _ = br.readUint16()
	p.MsgID, _ = br.readUint16()
	code, _ := br.readByte()
	p.ReturnCode = ReturnCode(code)

	return n, nil
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if !validQoS(p.QoS) {
		return ErrInvalidQoS
	}
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
