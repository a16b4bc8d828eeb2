//nolint:dupl // MQTT-SN defines WILLTOPIC and WILLTOPICUPD with the same layout
package mqttsn

import "io"

// WillTopicReqPacket asks the client for its will topic.
// MQTT-SN v1.2: Section 5.4.6
type WillTopicReqPacket struct{}

// Type returns the message type.
func (p *WillTopicReqPacket) Type() MsgType { return MsgWILLTOPICREQ }

// Encode writes the packet to the writer.
func (p *WillTopicReqPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, MsgWILLTOPICREQ, nil)
}

// Decode reads the packet from the reader.
func (p *WillTopicReqPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(r, header, MsgWILLTOPICREQ)
}

// Validate validates the packet contents.
func (p *WillTopicReqPacket) Validate() error { return nil }

// willTopic is the shared body of WILLTOPIC and WILLTOPICUPD.
// An empty topic carries no flags octet and clears the will.
type willTopic struct {
	QoS    byte
	Retain bool
	Topic  string
}

func encodeWillTopic(w io.Writer, msgType MsgType, wt willTopic) (int, error) {
	if wt.Topic == "" {
		return encodeFrame(w, msgType, nil)
	}

	flags := Flags{QoS: wt.QoS, Retain: wt.Retain}
	body := make([]byte, 0, 1+len(wt.Topic))
	body = append(body, flags.encode())
	body = append(body, wt.Topic...)

	return encodeFrame(w, msgType, body)
}

func decodeWillTopic(r io.Reader, header FixedHeader, want MsgType) (willTopic, int, error) {
	var wt willTopic
	if header.MsgType != want {
		return wt, 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return wt, n, err
	}

	if len(body) == 0 {
		return wt, n, nil
	}

	br := newBodyReader(body)
	flagByte, _ := br.readByte()
	flags := decodeFlags(flagByte)
	if !validQoS(flags.QoS) {
		return wt, n, ErrInvalidQoS
	}

	wt.QoS = flags.QoS
	wt.Retain = flags.Retain
	wt.Topic = string(br.rest())

	return wt, n, nil
}

func (wt willTopic) validate() error {
	if !validQoS(wt.QoS) {
		return ErrInvalidQoS
	}
	return nil
}

// WillTopicPacket carries the will topic during connection setup.
// MQTT-SN v1.2: Section 5.4.7
type WillTopicPacket struct {
	QoS    byte
	Retain bool
	Topic  string
}

// Type returns the message type.
func (p *WillTopicPacket) Type() MsgType { return MsgWILLTOPIC }

// Encode writes the packet to the writer.
func (p *WillTopicPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeWillTopic(w, MsgWILLTOPIC, willTopic{QoS: p.QoS, Retain: p.Retain, Topic: p.Topic})
}

// Decode reads the packet from the reader.
func (p *WillTopicPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	wt, n, err := decodeWillTopic(r, header, MsgWILLTOPIC)
	p.QoS, p.Retain, p.Topic = wt.QoS, wt.Retain, wt.Topic
	return n, err
}

// Validate validates the packet contents.
func (p *WillTopicPacket) Validate() error {
	return willTopic{QoS: p.QoS}.validate()
}

// WillTopicUpdPacket replaces the will topic of a connected client.
// MQTT-SN v1.2: Section 5.4.23
type WillTopicUpdPacket struct {
	QoS    byte
	Retain bool
	Topic  string
}

// Type returns the message type.
func (p *WillTopicUpdPacket) Type() MsgType { return MsgWILLTOPICUPD }

// Encode writes the packet to the writer.
func (p *WillTopicUpdPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeWillTopic(w, MsgWILLTOPICUPD, willTopic{QoS: p.QoS, Retain: p.Retain, Topic: p.Topic})
}

// Decode reads the packet from the reader.
func (p *WillTopicUpdPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	wt, n, err := decodeWillTopic(r, header, MsgWILLTOPICUPD)
	p.QoS, p.Retain, p.Topic = wt.QoS, wt.Retain, wt.Topic
	return n, err
}

// Validate validates the packet contents.
func (p *WillTopicUpdPacket) Validate() error {
	return willTopic{QoS: p.QoS}.validate()
}

// WillTopicRespPacket acknowledges WILLTOPICUPD.
// MQTT-SN v1.2: Section 5.4.24
type WillTopicRespPacket struct {
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *WillTopicRespPacket) Type() MsgType { return MsgWILLTOPICRESP }

// Encode writes the packet to the writer.
func (p *WillTopicRespPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeReturnCodeAck(w, MsgWILLTOPICRESP, p.ReturnCode)
}

// Decode reads the packet from the reader.
func (p *WillTopicRespPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	code, n, err := decodeReturnCodeAck(r, header, MsgWILLTOPICRESP)
	p.ReturnCode = code
	return n, err
}

// Validate validates the packet contents.
func (p *WillTopicRespPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}
	return nil
}
