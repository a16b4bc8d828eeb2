//nolint:dupl // MQTT-SN requires separate message types with the same structure
package mqttsn

import "io"

// PubrecPacket is the first acknowledgement of a QoS 2 PUBLISH.
// MQTT-SN v1.2: Section 5.4.14
type PubrecPacket struct {
	MsgID uint16
}

// Type returns the message type.
func (p *PubrecPacket) Type() MsgType { return MsgPUBREC }

// GetMsgID returns the message identifier.
func (p *PubrecPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *PubrecPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *PubrecPacket) Encode(w io.Writer) (int, error) {
	return encodeMsgIDAck(w, MsgPUBREC, p.MsgID)
}

// Decode reads the packet from the reader.
func (p *PubrecPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msgID, n, err := decodeMsgIDAck(r, header, MsgPUBREC)
	p.MsgID = msgID
	return n, err
}

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error {
	return nil
}
