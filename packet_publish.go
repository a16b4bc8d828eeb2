package mqttsn

import "io"

const publishFixedSize = 5

// PublishPacket carries application data in both directions.
// MQTT-SN v1.2: Section 5.4.12
type PublishPacket struct {
	DUP         bool
	QoS         byte
	Retain      bool
	TopicIDType TopicIDType
	TopicID     uint16
	// MsgID is zero for QoS 0.
	MsgID uint16
	Data  []byte
}

// Type returns the message type.
func (p *PublishPacket) Type() MsgType { return MsgPUBLISH }

// GetMsgID returns the message identifier.
func (p *PublishPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *PublishPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	flags := Flags{DUP: p.DUP, QoS: p.QoS, Retain: p.Retain, TopicIDType: p.TopicIDType}

	body := make([]byte, 0, publishFixedSize+len(p.Data))
	body = append(body, flags.encode())
	body = appendUint16(body, p.TopicID)
	body = appendUint16(body, p.MsgID)
	body = append(body, p.Data...)

	return encodeFrame(w, MsgPUBLISH, body)
}

// Decode reads the packet from the reader.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgPUBLISH {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	if len(body) < publishFixedSize {
		return n, ErrShortBody
	}

	br := newBodyReader(body)
	flagByte, _ := br.readByte()
	flags := decodeFlags(flagByte)
	p.DUP = flags.DUP
	p.QoS = flags.QoS
	p.Retain = flags.Retain
	p.TopicIDType = flags.TopicIDType
	p.TopicID, _ = br.readUint16()
	p.MsgID, _ = br.readUint16()
	p.Data = br.rest()

	return n, p.Validate()
}

// Validate validates the packet contents.
// A zero message id with QoS 1 or 2 is a protocol matter handled by the
// gateway, so it is accepted here.
func (p *PublishPacket) Validate() error {
	if !validQoS(p.QoS) {
		return ErrInvalidQoS
	}
	if p.TopicIDType > TopicIDShort {
		return ErrInvalidTopicIDType
	}
	return nil
}
