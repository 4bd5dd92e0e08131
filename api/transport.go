// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the non-blocking byte-stream abstraction that coroutines drive.

package api

// Stream abstracts a full-duplex connection whose Read and Write never park
// the calling goroutine. When no progress is possible right now they return
// ErrWouldBlock (possibly alongside a partial count for Write).
type Stream interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}
