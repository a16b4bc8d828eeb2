package mqttsn

import "io"

// topicRef is the topic field shared by SUBSCRIBE and UNSUBSCRIBE.
// Full and short names travel as text, predefined ids as two octets.
type topicRef struct {
	TopicIDType TopicIDType
	TopicName   string
	TopicID     uint16
}

func (t topicRef) append(dst []byte) []byte {
	if t.TopicIDType == TopicIDPredefined {
		return appendUint16(dst, t.TopicID)
	}
	return append(dst, t.TopicName...)
}

func (t *topicRef) read(br *bodyReader) error {
	switch t.TopicIDType {
	case TopicIDPredefined:
		id, err := br.readUint16()
		if err != nil {
			return err
		}
		if br.remaining() != 0 {
			return ErrLengthMismatch
		}
		t.TopicID = id
	case TopicNameFull, TopicIDShort:
		t.TopicName = string(br.rest())
	default:
		return ErrInvalidTopicIDType
	}
	return nil
}

// SubscribePacket subscribes to a topic name or predefined topic id.
// MQTT-SN v1.2: Section 5.4.15
type SubscribePacket struct {
	DUP         bool
	QoS         byte
	TopicIDType TopicIDType
	MsgID       uint16
	TopicName   string
	TopicID     uint16
}

// Type returns the message type.
func (p *SubscribePacket) Type() MsgType { return MsgSUBSCRIBE }

// GetMsgID returns the message identifier.
func (p *SubscribePacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *SubscribePacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	flags := Flags{DUP: p.DUP, QoS: p.QoS, TopicIDType: p.TopicIDType}
	ref := topicRef{TopicIDType: p.TopicIDType, TopicName: p.TopicName, TopicID: p.TopicID}

	body := make([]byte, 0, 3+len(p.TopicName)+2)
	body = append(body, flags.encode())
	body = appendUint16(body, p.MsgID)
	body = ref.append(body)

	return encodeFrame(w, MsgSUBSCRIBE, body)
}

// Decode reads the packet from the reader.
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.MsgType != MsgSUBSCRIBE {
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
	flags := decodeFlags(flagByte)
	p.DUP = flags.DUP
	p.QoS = flags.QoS
	p.TopicIDType = flags.TopicIDType

	if p.MsgID, err = br.readUint16(); err != nil {
		return n, err
	}

	ref := topicRef{TopicIDType: p.TopicIDType}
	if err := ref.read(br); err != nil {
		return n, err
	}
	p.TopicName, p.TopicID = ref.TopicName, ref.TopicID

	return n, p.Validate()
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if !validQoS(p.QoS) {
		return ErrInvalidQoS
	}
	if p.TopicIDType > TopicIDShort {
		return ErrInvalidTopicIDType
	}
	return nil
}
