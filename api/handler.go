// File: api/handler.go
// Package api defines the ConnectionHandler contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// ConnectionHandler accepts established connections from a listener.
type ConnectionHandler interface {
	// HandleConnection takes ownership of conn. It must not block.
	HandleConnection(conn Stream)
}
