package mqttsn

import "io"

// Packet is the interface that all MQTT-SN messages implement.
type Packet interface {
	// Type returns the message type.
	Type() MsgType

	// Encode writes the complete frame, header included, to the writer.
	// Returns the number of bytes written.
	Encode(w io.Writer) (int, error)

	// Decode reads the message body from the reader.
	// The fixed header should already be decoded.
	// Returns the number of bytes read.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate validates the packet contents.
	Validate() error
}

// PacketWithMsgID is implemented by packets that carry a message identifier.
type PacketWithMsgID interface {
	Packet

	// GetMsgID returns the message identifier.
	GetMsgID() uint16

	// SetMsgID sets the message identifier.
	SetMsgID(id uint16)
}

// QoS levels.
const (
	QoS0 byte = 0
	QoS1 byte = 1
	QoS2 byte = 2
)

// TopicIDType selects how the topic field of PUBLISH, SUBSCRIBE and
// UNSUBSCRIBE is interpreted.
type TopicIDType byte

const (
	// TopicIDNormal is a topic id returned by REGACK or SUBACK.
	TopicIDNormal TopicIDType = 0x00
	// TopicIDPredefined is a topic id agreed out of band.
	TopicIDPredefined TopicIDType = 0x01
	// TopicIDShort is a two-character topic name.
	TopicIDShort TopicIDType = 0x02
	// TopicNameFull means the message carries a full topic name (SUBSCRIBE/UNSUBSCRIBE only).
	TopicNameFull TopicIDType = 0x00
)

// Flag octet layout, MQTT-SN v1.2 section 5.3.4.
const (
	flagDUP          = 0x80
	flagQoSMask      = 0x60
	flagQoSShift     = 5
	flagRetain       = 0x10
	flagWill         = 0x08
	flagCleanSession = 0x04
	flagTopicIDMask  = 0x03
)

// Flags is the decoded form of the flag octet.
type Flags struct {
	DUP          bool
	QoS          byte
	Retain       bool
	Will         bool
	CleanSession bool
	TopicIDType  TopicIDType
}

func (f Flags) encode() byte {
	var b byte
	if f.DUP {
		b |= flagDUP
	}
	b |= (f.QoS << flagQoSShift) & flagQoSMask
	if f.Retain {
		b |= flagRetain
	}
	if f.Will {
		b |= flagWill
	}
	if f.CleanSession {
		b |= flagCleanSession
	}
	b |= byte(f.TopicIDType) & flagTopicIDMask
	return b
}

func decodeFlags(b byte) Flags {
	return Flags{
		DUP:          b&flagDUP != 0,
		QoS:          (b & flagQoSMask) >> flagQoSShift,
		Retain:       b&flagRetain != 0,
		Will:         b&flagWill != 0,
		CleanSession: b&flagCleanSession != 0,
		TopicIDType:  TopicIDType(b & flagTopicIDMask),
	}
}

func validQoS(qos byte) bool {
	return qos <= QoS2
}

// Message is an application message as seen by subscribers and publishers.
type Message struct {
	// Topic is the topic name, when it is known locally.
	Topic string

	// TopicID is the id the message was published under.
	TopicID uint16

	// Payload is the application payload.
	Payload []byte

	// QoS is the delivery QoS.
	QoS byte

	// Retain indicates the retain flag was set.
	Retain bool

	// Duplicate indicates the frame was a retransmission.
	Duplicate bool
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := *m
	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}

	return &clone
}
