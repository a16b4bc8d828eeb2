//nolint:dupl // MQTT-SN requires separate message types with the same structure
package mqttsn

import "io"

// PubcompPacket completes a QoS 2 exchange.
// MQTT-SN v1.2: Section 5.4.14
type PubcompPacket struct {
	MsgID uint16
}

// Type returns the message type.
func (p *PubcompPacket) Type() MsgType { return MsgPUBCOMP }

// GetMsgID returns the message identifier.
func (p *PubcompPacket) GetMsgID() uint16 { return p.MsgID }

// SetMsgID sets the message identifier.
func (p *PubcompPacket) SetMsgID(id uint16) { p.MsgID = id }

// Encode writes the packet to the writer.
func (p *PubcompPacket) Encode(w io.Writer) (int, error) {
	return encodeMsgIDAck(w, MsgPUBCOMP, p.MsgID)
}

// Decode reads the packet from the reader.
func (p *PubcompPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msgID, n, err := decodeMsgIDAck(r, header, MsgPUBCOMP)
	p.MsgID = msgID
	return n, err
}

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error {
	return nil
}
