// File: internal/concurrency/spinlock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SpinLock guards critical sections that last a few hundred nanoseconds
// (slice append, buffer swap). Never hold it across a coroutine step.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYield bounds busy-waiting before handing the P back to the runtime.
const spinsBeforeYield = 16

// SpinLock is a test-and-test-and-set lock. The zero value is unlocked.
type SpinLock struct {
	state atomic.Uint32
}

// Lock acquires the lock.
func (l *SpinLock) Lock() {
	for spins := 0; ; spins++ {
		if l.state.Load() == 0 && l.state.CompareAndSwap(0, 1) {
			return
		}
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock acquires the lock if it is free.
func (l *SpinLock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock.
func (l *SpinLock) Unlock() {
	l.state.Store(0)
}
