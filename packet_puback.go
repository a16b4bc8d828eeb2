package mqttsn

import "io"

// PubackPacket answers a QoS 1 PUBLISH, or rejects a PUBLISH of any QoS.
// MQTT-SN v1.2: Section 5.4.13
type PubackPacket struct {
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *PubackPacket) Type() MsgType { return MsgPUBACK }

// GetMsgID returns the message identifier.
func (p *PubackPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *PubackPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	body := make([]byte, 0, 5)
	body = appendUint16(body, p.TopicID)
	body = appendUint16(body, p.MsgID)
	body = append(body, byte(p.ReturnCode))

	return encodeFrame(w, MsgPUBACK, body)
}

// Decode reads the packet from the reader.
func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgPUBACK {
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
func (p *PubackPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
