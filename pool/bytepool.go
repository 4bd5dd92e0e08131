// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

// BytePool hands out fixed-size I/O buffers.
type BytePool struct {
	pool *Pool[[]byte]
	size int
}

// NewBytePool creates a pool of size-byte buffers retaining at most capacity idle ones.
func NewBytePool(size, capacity int) *BytePool {
	return &BytePool{
		pool: NewPool(capacity, func() []byte { return make([]byte, size) }, nil),
		size: size,
	}
}

// GetBuffer returns a buffer of the pool's fixed size.
func (b *BytePool) GetBuffer() []byte {
	return b.pool.Get()
}

// PutBuffer returns a buffer to the pool. Buffers of foreign size are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) < b.size {
		return
	}
	b.pool.Put(buf[:b.size])
}
