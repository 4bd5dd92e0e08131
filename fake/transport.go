// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the core interfaces.

package fake

import (
	"bytes"
	"io"
	"sync"

	"github.com/momentics/hioload-async/api"
)

// Stream is an in-memory api.Stream. Reads return ErrWouldBlock until data
// is fed; writes are captured up to an optional per-call limit.
type Stream struct {
	mu         sync.Mutex
	in         bytes.Buffer
	out        bytes.Buffer
	eof        bool
	closed     bool
	closeCount int
	writeLimit int
	writeBlock bool
	readErr    error
}

var _ api.Stream = (*Stream)(nil)

// NewStream creates a stream with initial readable data.
func NewStream(data string) *Stream {
	s := &Stream{}
	s.in.WriteString(data)
	return s
}

// Feed appends readable data.
func (s *Stream) Feed(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in.WriteString(data)
}

// CloseRead makes Read return io.EOF once the buffered data is consumed.
func (s *Stream) CloseRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eof = true
}

// SetReadError makes every subsequent Read fail with err.
func (s *Stream) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetWriteLimit caps bytes accepted per Write call; 0 means unlimited.
func (s *Stream) SetWriteLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLimit = n
}

// SetWriteBlocked makes Write report ErrWouldBlock without accepting data.
func (s *Stream) SetWriteBlocked(blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBlock = blocked
}

// Read implements api.Stream.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return 0, io.ErrClosedPipe
	case s.readErr != nil:
		return 0, s.readErr
	case s.in.Len() > 0:
		return s.in.Read(p)
	case s.eof:
		return 0, io.EOF
	}
	return 0, api.ErrWouldBlock
}

// Write implements api.Stream.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.writeBlock {
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if s.writeLimit > 0 && n > s.writeLimit {
		n = s.writeLimit
	}
	s.out.Write(p[:n])
	if n < len(p) {
		return n, api.ErrWouldBlock
	}
	return n, nil
}

// Close implements api.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCount++
	return nil
}

// Written returns everything written so far.
func (s *Stream) Written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCount returns how many times Close was called.
func (s *Stream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}
