package mqttsn

import (
	"encoding/binary"
	"fmt"
	"io"
)

// encodeFrame writes the header computed for body followed by body.
func encodeFrame(w io.Writer, msgType MsgType, body []byte) (int, error) {
	header, err := newFixedHeader(msgType, len(body))
	if err != nil {
		return 0, err
	}

	n, err := header.Encode(w)
	if err != nil {
		return n, err
	}

	if len(body) == 0 {
		return n, nil
	}

	n2, err := w.Write(body)
	return n + n2, err
}

// readBody reads exactly the number of body octets announced by header.
func readBody(r io.Reader, header FixedHeader) ([]byte, int, error) {
	size := header.BodyLength()
	if size < 0 {
		return nil, 0, ErrMalformedLength
	}

	buf := make([]byte, size)
	if size == 0 {
		return buf, 0, nil
	}

	n, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, n, fmt.Errorf("%w: %w", ErrLengthMismatch, err)
	}

	return buf, n, nil
}

// expectBodySize checks a fixed-size body.
func expectBodySize(body []byte, size int) error {
	switch {
	case len(body) < size:
		return ErrShortBody
	case len(body) > size:
		return ErrLengthMismatch
	}
	return nil
}

// bodyReader is a cursor over a decoded message body.
type bodyReader struct {
	data []byte
	pos  int
}

func newBodyReader(data []byte) *bodyReader {
	return &bodyReader{data: data}
}

func (b *bodyReader) readByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, ErrShortBody
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *bodyReader) readUint16() (uint16, error) {
	if b.pos+2 > len(b.data) {
		return 0, ErrShortBody
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

// rest returns a copy of all unread octets.
func (b *bodyReader) rest() []byte {
	if b.pos >= len(b.data) {
		return nil
	}
	out := make([]byte, len(b.data)-b.pos)
	copy(out, b.data[b.pos:])
	b.pos = len(b.data)
	return out
}

func (b *bodyReader) remaining() int {
	return len(b.data) - b.pos
}

func appendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}
