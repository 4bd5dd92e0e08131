// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake coroutines and factories for scheduler and worker tests.

package fake

import (
	"sync"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/transport"
	"go.uber.org/atomic"
)

// Coroutine finishes after a fixed number of proceeding steps. Counters are
// atomic so tests may observe them from another goroutine.
type Coroutine struct {
	Steps    atomic.Int64
	Released atomic.Int64

	remaining int
	state     *transport.ConnState
}

var _ api.Coroutine = (*Coroutine)(nil)

// NewCoroutine returns a coroutine that proceeds n times, then finishes.
func NewCoroutine(n int) *Coroutine {
	return &Coroutine{remaining: n}
}

// Step implements api.Coroutine.
func (c *Coroutine) Step() api.Action {
	c.Steps.Inc()
	if c.remaining <= 0 {
		return api.ActionFinish
	}
	c.remaining--
	return api.ActionProceed
}

// Err implements api.Coroutine.
func (c *Coroutine) Err() error { return nil }

// Release implements api.Coroutine.
func (c *Coroutine) Release() {
	c.Released.Inc()
	if c.state != nil {
		c.state.Release()
	}
}

// Factory builds fake coroutines for connection states and records them.
type Factory struct {
	// Steps is the number of proceeding steps each coroutine performs.
	Steps int

	mu    sync.Mutex
	built []*Coroutine
	conns []api.Stream
}

// NewCoroutine builds a coroutine bound to state.
func (f *Factory) NewCoroutine(state *transport.ConnState) api.Coroutine {
	c := NewCoroutine(f.Steps)
	c.state = state
	f.mu.Lock()
	f.built = append(f.built, c)
	f.conns = append(f.conns, state.Conn)
	f.mu.Unlock()
	return c
}

// Built returns the coroutines created so far.
func (f *Factory) Built() []*Coroutine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Coroutine(nil), f.built...)
}

// Conns returns the streams handed to the factory, in creation order.
func (f *Factory) Conns() []api.Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Stream(nil), f.conns...)
}
