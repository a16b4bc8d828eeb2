package mqttsn

import (
	"io"
)

// encodeMsgIDAck encodes a message whose body is only a message id
// (PUBREC, PUBREL, PUBCOMP, UNSUBACK).
func encodeMsgIDAck(w io.Writer, msgType MsgType, msgID uint16) (int, error) {
	return encodeFrame(w, msgType, appendUint16(nil, msgID))
}

// decodeMsgIDAck decodes a message whose body is only a message id.
func decodeMsgIDAck(r io.Reader, header FixedHeader, want MsgType) (uint16, int, error) {
	if header.MsgType != want {
		return 0, 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return 0, n, err
	}

	if err := expectBodySize(body, 2); err != nil {
		return 0, n, err
	}

	msgID, err := newBodyReader(body).readUint16()
	return msgID, n, err
}

// encodeReturnCodeAck encodes a message whose body is only a return code
// (CONNACK, WILLTOPICRESP, WILLMSGRESP).
func encodeReturnCodeAck(w io.Writer, msgType MsgType, code ReturnCode) (int, error) {
	return encodeFrame(w, msgType, []byte{byte(code)})
}

// decodeReturnCodeAck decodes a message whose body is only a return code.
func decodeReturnCodeAck(r io.Reader, header FixedHeader, want MsgType) (ReturnCode, int, error) {
	if header.MsgType != want {
		return 0, 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return 0, n, err
	}

	if err := expectBodySize(body, 1); err != nil {
		return 0, n, err
	}

	return ReturnCode(body[0]), n, nil
}

// decodeEmpty checks a message that carries no body
// (WILLTOPICREQ, WILLMSGREQ, PINGRESP).
func decodeEmpty(r io.Reader, header FixedHeader, want MsgType) (int, error) {
	if header.MsgType != want {
		return 0, ErrUnknownMessageType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	return n, expectBodySize(body, 0)
}
