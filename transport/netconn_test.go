// File: transport/netconn_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEventually(t *testing.T, c *transport.NetConn, p []byte) (int, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := c.Read(p)
		if err != api.ErrWouldBlock || time.Now().After(deadline) {
			return n, err
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNetConn_PipeFallback(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := transport.NewNetConn(a)
	defer c.Close()

	buf := make([]byte, 16)
	_, err := c.Read(buf)
	assert.ErrorIs(t, err, api.ErrWouldBlock)

	go func() { _, _ = b.Write([]byte("ping")) }()
	n, err := readEventually(t, c, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestNetConn_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	c := transport.NewNetConn(server)
	defer c.Close()

	buf := make([]byte, 16)
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, api.ErrWouldBlock)

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)
	n, err := readEventually(t, c, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = c.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, 5)
	_, err = io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))

	require.NoError(t, client.Close())
	_, err = readEventually(t, c, buf)
	assert.ErrorIs(t, err, io.EOF)
}
