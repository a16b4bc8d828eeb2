package mqttsn

import (
	"bytes"
	"io"
)

// ReadPacket decodes one datagram into a packet.
// The length field must agree with the datagram size, otherwise
// ErrLengthMismatch is returned.
func ReadPacket(datagram []byte) (Packet, error) {
	r := bytes.NewReader(datagram)

	var header FixedHeader
	if _, err := header.Decode(r); err != nil {
		return nil, err
	}

	if int(header.Length) != len(datagram) {
		return nil, ErrLengthMismatch
	}

	packet, err := newPacket(header.MsgType)
	if err != nil {
		return nil, err
	}

	if _, err := packet.Decode(r, header); err != nil {
		return nil, err
	}

	return packet, nil
}

// WritePacket validates and writes a complete frame to the writer.
func WritePacket(w io.Writer, packet Packet) (int, error) {
	if err := packet.Validate(); err != nil {
		return 0, err
	}
	return packet.Encode(w)
}

// MarshalPacket returns the encoded frame for packet.
func MarshalPacket(packet Packet) ([]byte, error) {
	buf := getFrameBuffer()
	defer putFrameBuffer(buf)

	if _, err := WritePacket(buf, packet); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func newPacket(msgType MsgType) (Packet, error) {
	switch msgType {
	case MsgADVERTISE:
		return &AdvertisePacket{}, nil
	case MsgSEARCHGW:
		return &SearchGwPacket{}, nil
	case MsgGWINFO:
		return &GwInfoPacket{}, nil
	case MsgCONNECT:
		return &ConnectPacket{}, nil
	case MsgCONNACK:
		return &ConnackPacket{}, nil
	case MsgWILLTOPICREQ:
		return &WillTopicReqPacket{}, nil
	case MsgWILLTOPIC:
		return &WillTopicPacket{}, nil
	case MsgWILLMSGREQ:
		return &WillMsgReqPacket{}, nil
	case MsgWILLMSG:
		return &WillMsgPacket{}, nil
	case MsgREGISTER:
		return &RegisterPacket{}, nil
	case MsgREGACK:
		return &RegackPacket{}, nil
	case MsgPUBLISH:
		return &PublishPacket{}, nil
	case MsgPUBACK:
		return &PubackPacket{}, nil
	case MsgPUBREC:
		return &PubrecPacket{}, nil
	case MsgPUBREL:
		return &PubrelPacket{}, nil
	case MsgPUBCOMP:
		return &PubcompPacket{}, nil
	case MsgSUBSCRIBE:
		return &SubscribePacket{}, nil
	case MsgSUBACK:
		return &SubackPacket{}, nil
	case MsgUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case MsgUNSUBACK:
		return &UnsubackPacket{}, nil
	case MsgPINGREQ:
		return &PingreqPacket{}, nil
	case MsgPINGRESP:
		return &PingrespPacket{}, nil
	case MsgDISCONNECT:
		return &DisconnectPacket{}, nil
	case MsgWILLTOPICUPD:
		return &WillTopicUpdPacket{}, nil
	case MsgWILLTOPICRESP:
		return &WillTopicRespPacket{}, nil
	case MsgWILLMSGUPD:
		return &WillMsgUpdPacket{}, nil
	case MsgWILLMSGRESP:
		return &WillMsgRespPacket{}, nil
	default:
		return nil, ErrUnknownMessageType
	}
}
