// File: transport/buffered.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffered adapters over a non-blocking api.Stream. Neither type blocks:
// Fill and Flush surface api.ErrWouldBlock to the caller, which is expected
// to suspend and retry later.

package transport

import (
	"errors"

	"github.com/momentics/hioload-async/api"
	"github.com/valyala/bytebufferpool"
)

// ErrBufferFull is returned by Fill when no free space remains.
var ErrBufferFull = errors.New("transport: input buffer full")

// BufferedInput accumulates bytes read from a Stream into a fixed buffer.
type BufferedInput struct {
	src  api.Stream
	buf  []byte
	r, w int
}

// NewBufferedInput reads from src into buf. buf is borrowed, not copied.
func NewBufferedInput(src api.Stream, buf []byte) *BufferedInput {
	return &BufferedInput{src: src, buf: buf}
}

// Fill performs one read into the free tail of the buffer, compacting first
// when the head has been consumed.
func (b *BufferedInput) Fill() (int, error) {
	if b.r > 0 {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}
	if b.w == len(b.buf) {
		return 0, ErrBufferFull
	}
	n, err := b.src.Read(b.buf[b.w:])
	b.w += n
	return n, err
}

// Buffered returns the unread bytes. The slice is valid until the next Fill.
func (b *BufferedInput) Buffered() []byte {
	return b.buf[b.r:b.w]
}

// Discard drops n unread bytes.
func (b *BufferedInput) Discard(n int) {
	if n > b.w-b.r {
		n = b.w - b.r
	}
	b.r += n
	if b.r == b.w {
		b.r, b.w = 0, 0
	}
}

// Cap returns the buffer size.
func (b *BufferedInput) Cap() int {
	return len(b.buf)
}

// BufferedOutput stages outgoing bytes in a pooled buffer until Flush.
type BufferedOutput struct {
	dst     api.Stream
	pending *bytebufferpool.ByteBuffer
	off     int
}

// NewBufferedOutput writes to dst.
func NewBufferedOutput(dst api.Stream) *BufferedOutput {
	return &BufferedOutput{dst: dst}
}

// Write appends p to the pending data. It never touches the stream.
func (o *BufferedOutput) Write(p []byte) (int, error) {
	if o.pending == nil {
		o.pending = bytebufferpool.Get()
	}
	return o.pending.Write(p)
}

// Pending returns the number of staged bytes not yet written.
func (o *BufferedOutput) Pending() int {
	if o.pending == nil {
		return 0
	}
	return o.pending.Len() - o.off
}

// Flush writes as much pending data as the stream accepts. It returns nil
// once everything is written, api.ErrWouldBlock if data remains.
func (o *BufferedOutput) Flush() error {
	for o.Pending() > 0 {
		n, err := o.dst.Write(o.pending.B[o.off:])
		o.off += n
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrWouldBlock
		}
	}
	o.Release()
	return nil
}

// Release returns the staging buffer to its pool and discards pending data.
func (o *BufferedOutput) Release() {
	if o.pending != nil {
		bytebufferpool.Put(o.pending)
		o.pending = nil
	}
	o.off = 0
}
