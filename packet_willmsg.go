//nolint:dupl // MQTT-SN defines WILLMSG and WILLMSGUPD with the same layout
package mqttsn

import "io"

// WillMsgReqPacket asks the client for its will message.
// MQTT-SN v1.2: Section 5.4.8
type WillMsgReqPacket struct{}

// Type returns the message type.
func (p *WillMsgReqPacket) Type() MsgType { return MsgWILLMSGREQ }

// Encode writes the packet to the writer.
func (p *WillMsgReqPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgWILLMSGREQ, nil)
}

// Decode reads the packet from the reader.
func (p *WillMsgReqPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(r, header, MsgWILLMSGREQ)
}

// Validate validates the packet contents.
func (p *WillMsgReqPacket) Validate() error { return nil }

func decodeWillMsg(r io.Reader, header FixedHeader, want MsgType) ([]byte, int, error) {
	if header.MsgType != want {
		return nil, 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return nil, n, err
	}

	return body, n, nil
}

// WillMsgPacket carries the will message during connection setup.
// MQTT-SN v1.2: Section 5.4.9
type WillMsgPacket struct {
	Message []byte
}

// Type returns the message type.
func (p *WillMsgPacket) Type() MsgType { return MsgWILLMSG }

// Encode writes the packet to the writer.
func (p *WillMsgPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgWILLMSG, p.Message)
}

// Decode reads the packet from the reader.
func (p *WillMsgPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msg, n, err := decodeWillMsg(r, header, MsgWILLMSG)
	p.Message = msg
	return n, err
}

// Validate validates the packet contents.
func (p *WillMsgPacket) Validate() error { return nil }

// WillMsgUpdPacket replaces the will message of a connected client.
// MQTT-SN v1.2: Section 5.4.25
type WillMsgUpdPacket struct {
	Message []byte
}

// Type returns the message type.
func (p *WillMsgUpdPacket) Type() MsgType { return MsgWILLMSGUPD }

// Encode writes the packet to the writer.
func (p *WillMsgUpdPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgWILLMSGUPD, p.Message)
}

// Decode reads the packet from the reader.
func (p *WillMsgUpdPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	msg, n, err := decodeWillMsg(r, header, MsgWILLMSGUPD)
	p.Message = msg
	return n, err
}

// Validate validates the packet contents.
func (p *WillMsgUpdPacket) Validate() error { return nil }

// WillMsgRespPacket acknowledges WILLMSGUPD.
// MQTT-SN v1.2: Section 5.4.26
type WillMsgRespPacket struct {
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *WillMsgRespPacket) Type() MsgType { return MsgWILLMSGRESP }

// Encode writes the packet to the writer.
func (p *WillMsgRespPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeReturnCodeAck(w, MsgWILLMSGRESP, p.ReturnCode)
}

// Decode reads the packet from the reader.
func (p *WillMsgRespPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	code, n, err := decodeReturnCodeAck(r, header, MsgWILLMSGRESP)
	p.ReturnCode = code
	return n, err
}

// Validate validates the packet contents.
func (p *WillMsgRespPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
