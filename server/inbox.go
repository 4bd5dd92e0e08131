// File: server/inbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/eapache/queue"
	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/internal/concurrency"
	"github.com/momentics/hioload-async/transport"
)

// Inbox hands connections from any producer goroutine to one worker.
// Producers append under a spin lock; the worker swaps the filled buffer for
// an empty one under the same lock and builds tasks outside of it.
type Inbox struct {
	lock    concurrency.SpinLock
	pending *queue.Queue
	spare   *queue.Queue // owned by the consumer between drains
	closed  bool
}

// NewInbox returns an open, empty inbox.
func NewInbox() *Inbox {
	return &Inbox{
		pending: queue.New(),
		spare:   queue.New(),
	}
}

// Push appends state. It fails with api.ErrHandlerClosed once Close ran.
func (b *Inbox) Push(state *transport.ConnState) error {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return api.ErrHandlerClosed
	}
	b.pending.Add(state)
	b.lock.Unlock()
	return nil
}

// Drain passes every queued record to fn in arrival order and returns the
// count. Only the consuming goroutine may call Drain.
func (b *Inbox) Drain(fn func(*transport.ConnState)) int {
	b.lock.Lock()
	if b.pending.Length() == 0 {
		b.lock.Unlock()
		return 0
	}
	b.pending, b.spare = b.spare, b.pending
	b.lock.Unlock()

	n := 0
	for b.spare.Length() > 0 {
		fn(b.spare.Remove().(*transport.ConnState))
		n++
	}
	return n
}

// Close rejects further pushes and drains what is left into fn.
func (b *Inbox) Close(fn func(*transport.ConnState)) int {
	b.lock.Lock()
	b.closed = true
	b.lock.Unlock()
	return b.Drain(fn)
}

// Len returns the number of records waiting to be drained.
func (b *Inbox) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.pending.Length()
}
