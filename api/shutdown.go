// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// GracefulShutdown is implemented by components owning goroutines or sockets.
type GracefulShutdown interface {
	// Shutdown stops the component and waits for its goroutines to exit,
	// or until ctx is done.
	Shutdown(ctx context.Context) error
}
