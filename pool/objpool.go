// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded object pool with an explicit capacity and checkout/return contract.

package pool

import (
	"sync"

	"github.com/momentics/hioload-async/api"
)

// Pool keeps up to capacity idle objects. Get never blocks: when the pool is
// empty a new object is built with the creator function. Put drops objects
// once capacity is reached. Safe for concurrent use.
type Pool[T any] struct {
	mu       sync.Mutex
	free     []T
	capacity int
	creator  func() T
	reset    func(T)
}

var _ api.ObjectPool[int] = (*Pool[int])(nil)

// NewPool creates a pool. reset, if non-nil, is applied to objects on Put.
func NewPool[T any](capacity int, creator func() T, reset func(T)) *Pool[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool[T]{
		free:     make([]T, 0, capacity),
		capacity: capacity,
		creator:  creator,
		reset:    reset,
	}
}

// Get checks out an object.
func (p *Pool[T]) Get() T {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		obj := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return obj
	}
	p.mu.Unlock()
	return p.creator()
}

// Put returns an object for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.mu.Lock()
	if len(p.free) < p.capacity {
		p.free = append(p.free, obj)
	}
	p.mu.Unlock()
}

// Cap returns the retention capacity.
func (p *Pool[T]) Cap() int {
	return p.capacity
}

// Len returns the number of idle objects.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
