// File: transport/netconn_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !unix

package transport

import (
	"net"
	"syscall"
)

// rawConnOf always reports no raw access; the deadline path is used instead.
func rawConnOf(net.Conn) syscall.RawConn { return nil }

func (c *NetConn) rawRead(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *NetConn) rawWrite(p []byte) (int, error) { return c.conn.Write(p) }
