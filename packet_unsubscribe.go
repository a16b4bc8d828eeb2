package mqttsn

import "io"

// UnsubscribePacket removes a subscription.
// MQTT-SN v1.2: Section 5.4.17
type UnsubscribePacket struct {
	TopicIDType TopicIDType
	MsgID       uint16
	TopicName   string
	TopicID     uint16
}

// Type returns the message type.
func (p *UnsubscribePacket) Type() MsgType { return MsgUNSUBSCRIBE }

// GetMsgID returns the message identifier.
func (p *UnsubscribePacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *UnsubscribePacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *UnsubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	flags := Flags{TopicIDType: p.TopicIDType}
	ref := topicRef{TopicIDType: p.TopicIDType, TopicName: p.TopicName, TopicID: p.TopicID}

	body := make([]byte, 0, 3+len(p.TopicName)+2)
	body = append(body, flags.encode())
	body = appendUint16(body, p.MsgID)
	body = ref.append(body)

	return encodeFrame(w, MsgUNSUBSCRIBE, body)
}

// Decode reads the packet from the reader.
func (p *UnsubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgUNSUBSCRIBE {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := newBodyReader(body)
	flagByte, err := br.readByte()
	if err != nil {
		return n, err
	}
	p.TopicIDType = decodeFlags(flagByte).TopicIDType

	if p.MsgID, err = br.readUint16(); err != nil {
		return n, err
	}

	ref := topicRef{TopicIDType: p.TopicIDType}
	if err := ref.read(br); err != nil {
		return n, err
	}
	p.TopicName, p.TopicID = ref.TopicName, ref.TopicID

	return n, nil
}

// Validate validates the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if p.TopicIDType > TopicIDShort {
		return ErrInvalidTopicIDType
	}
	return nil
}

// UnsubackPacket answers UNSUBSCRIBE.
// MQTT-SN v1.2: Section 5.4.18
type UnsubackPacket struct {
	MsgID uint16
}

// Type returns the message type.
func (p *UnsubackPacket) Type() MsgType { return MsgUNSUBACK }

// GetMsgID returns the message identifier.
func (p *UnsubackPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *UnsubackPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *UnsubackPacket) Encode(w io.Writer) (int, error) {
	return encodeMsgIDAck(w, MsgUNSUBACK, p.MsgID)
}

// Decode reads the packet from the reader.
func (p *UnsubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msgID, n, err := decodeMsgIDAck(r, header, MsgUNSUBACK)
	p.MsgID = msgID
	return n, err
}

// Validate validates the packet contents.
func (p *UnsubackPacket) Validate() error {
	return nil
}
