// File: transport/connstate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"sync"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/pool"
)

// ConnState bundles everything a connection task needs: the stream, its
// pooled I/O buffer and the buffered adapters built on both.
type ConnState struct {
	Conn     api.Stream
	IOBuffer []byte
	In       *BufferedInput
	Out      *BufferedOutput

	buffers *pool.BytePool
	once    sync.Once
}

// NewConnState takes an I/O buffer from buffers and wires the adapters.
func NewConnState(conn api.Stream, buffers *pool.BytePool) *ConnState {
	buf := buffers.GetBuffer()
	return &ConnState{
		Conn:     conn,
		IOBuffer: buf,
		In:       NewBufferedInput(conn, buf),
		Out:      NewBufferedOutput(conn),
		buffers:  buffers,
	}
}

// Release closes the connection and returns the buffers. Safe to call more
// than once; only the first call has an effect.
func (s *ConnState) Release() {
	s.once.Do(func() {
		_ = s.Conn.Close()
		s.Out.Release()
		if s.buffers != nil {
			s.buffers.PutBuffer(s.IOBuffer)
		}
		s.IOBuffer = nil
		s.In = nil
	})
}
