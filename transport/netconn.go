// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/momentics/hioload-async/api"
)

// DefaultPollTimeout bounds a single Read or Write on connections that do not
// expose a raw file descriptor.
const DefaultPollTimeout = 50 * time.Microsecond

// NetConn adapts a net.Conn to the non-blocking api.Stream contract.
// Operations that cannot make progress return api.ErrWouldBlock instead of
// parking the calling goroutine.
type NetConn struct {
	conn        net.Conn
	raw         syscall.RawConn
	pollTimeout time.Duration
}

var _ api.Stream = (*NetConn)(nil)

// NewNetConn wraps conn. Sockets backed by a file descriptor are driven with
// direct non-blocking syscalls; everything else uses short deadlines.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{
		conn:        conn,
		raw:         rawConnOf(conn),
		pollTimeout: DefaultPollTimeout,
	}
}

// Read implements api.Stream.
func (c *NetConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.raw != nil {
		return c.rawRead(p)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(p)
	return n, mapTimeout(err)
}

// Write implements api.Stream. A short write returns the accepted byte count
// together with api.ErrWouldBlock.
func (c *NetConn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.raw != nil {
		return c.rawWrite(p)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return 0, err
	}
	n, err := c.conn.Write(p)
	return n, mapTimeout(err)
}

// Close implements api.Stream.
func (c *NetConn) Close() error {
	return c.conn.Close()
}

func mapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return api.ErrWouldBlock
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return api.ErrWouldBlock
	}
	return err
}
