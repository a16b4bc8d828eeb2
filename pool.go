package mqttsn

import (
	"bytes"
	"sync"
)

// Buffer pools for reducing allocations in hot paths.
var (
	// datagramPool for transport reads
	datagramPool = sync.Pool{
		New: func() any {
			b := make([]byte, MaxDatagramSize)
			return &b
		},
	}

	// frameBufferPool for frame encoding
	frameBufferPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

// getDatagramBuffer returns a pooled buffer of MaxDatagramSize octets.
func getDatagramBuffer() *[]byte {
	return datagramPool.Get().(*[]byte)
}

// putDatagramBuffer returns a read buffer to the pool.
func putDatagramBuffer(b *[]byte) {
	if b == nil || cap(*b) < MaxDatagramSize {
		return
	}
	*b = (*b)[:MaxDatagramSize]
	datagramPool.Put(b)
}

// getFrameBuffer returns an empty pooled encode buffer.
func getFrameBuffer() *bytes.Buffer {
	b := frameBufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// putFrameBuffer returns an encode buffer to the pool.
func putFrameBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	// A frame never exceeds MaxFrameLength.
	if b.Cap() <= MaxFrameLength {
		b.Reset()
		frameBufferPool.Put(b)
	}
}
