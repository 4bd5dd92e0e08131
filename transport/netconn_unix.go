// File: transport/netconn_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build unix

package transport

import (
	"io"
	"net"
	"syscall"

	"github.com/momentics/hioload-async/api"
	"golang.org/x/sys/unix"
)

func rawConnOf(conn net.Conn) syscall.RawConn {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil
	}
	return rc
}

// rawRead performs exactly one read(2). The callback always returns true so
// the runtime poller never parks the goroutine.
func (c *NetConn) rawRead(p []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	if err := c.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	}); err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, mapErrno(opErr)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *NetConn) rawWrite(p []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	if err := c.raw.Write(func(fd uintptr) bool {
		n, opErr = unix.Write(int(fd), p)
		return true
	}); err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	if opErr != nil {
		return n, mapErrno(opErr)
	}
	if n < len(p) {
		return n, api.ErrWouldBlock
	}
	return n, nil
}

func mapErrno(err error) error {
	switch err {
	case unix.EAGAIN, unix.EINTR:
		return api.ErrWouldBlock
	case unix.ECONNRESET, unix.EPIPE:
		return io.ErrUnexpectedEOF
	}
	return err
}
