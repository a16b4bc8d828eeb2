//nolint:dupl // MQTT-SN requires separate message types with the same structure
package mqttsn

import "io"

// PubrelPacket releases a QoS 2 message after PUBREC.
// MQTT-SN v1.2: Section 5.4.14
type PubrelPacket struct {
	MsgID uint16
}

// Type returns the message type.
func (p *PubrelPacket) Type() MsgType { return MsgPUBREL }

// GetMsgID returns the message identifier.
func (p *PubrelPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *PubrelPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *PubrelPacket) Encode(w io.Writer) (int, error) {
	return encodeMsgIDAck(w, MsgPUBREL, p.MsgID)
}

// Decode reads the packet from the reader.
func (p *PubrelPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msgID, n, err := decodeMsgIDAck(r, header, MsgPUBREL)
	p.MsgID = msgID
	return n, err
}

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error {
	return nil
}
