// File: internal/concurrency/task_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle-based task storage. Coroutines live in an arena; queues only carry
// stable handles into it, so moving a task between queues never copies it.

package concurrency

import (
	"github.com/gammazero/deque"
	"github.com/momentics/hioload-async/api"
)

// Handle identifies a task slot. The low 32 bits are the slot index, the high
// 32 bits the slot generation, so a stale handle never resolves to a reused slot.
type Handle uint64

func makeHandle(idx, gen uint32) Handle { return Handle(uint64(gen)<<32 | uint64(idx)) }

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

type taskSlot struct {
	task api.Coroutine
	gen  uint32
}

// taskArena owns every admitted coroutine of one Processor.
type taskArena struct {
	slots []taskSlot
	free  []uint32
	live  int
}

func (a *taskArena) insert(c api.Coroutine) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, taskSlot{})
	}
	s := &a.slots[idx]
	s.gen++
	s.task = c
	a.live++
	return makeHandle(idx, s.gen)
}

func (a *taskArena) get(h Handle) (api.Coroutine, bool) {
	idx := h.index()
	if int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if s.gen != h.generation() || s.task == nil {
		return nil, false
	}
	return s.task, true
}

func (a *taskArena) remove(h Handle) (api.Coroutine, bool) {
	c, ok := a.get(h)
	if !ok {
		return nil, false
	}
	idx := h.index()
	a.slots[idx].task = nil
	a.free = append(a.free, idx)
	a.live--
	return c, true
}

func (a *taskArena) len() int { return a.live }

// TaskQueue is a FIFO of task handles. It is not safe for concurrent use;
// the owning Processor serialises access.
type TaskQueue struct {
	items deque.Deque[Handle]
}

// PushBack appends h in O(1).
func (q *TaskQueue) PushBack(h Handle) {
	q.items.PushBack(h)
}

// PopFront removes and returns the head; ok is false when the queue is empty.
func (q *TaskQueue) PopFront() (h Handle, ok bool) {
	if q.items.Len() == 0 {
		return 0, false
	}
	return q.items.PopFront(), true
}

// Len returns the number of queued handles.
func (q *TaskQueue) Len() int {
	return q.items.Len()
}

// Clear drops all handles. The referenced tasks are left untouched.
func (q *TaskQueue) Clear() {
	q.items.Clear()
}

// First returns a cursor positioned on the head.
func (q *TaskQueue) First() Cursor {
	return Cursor{q: q}
}

// Cursor walks a TaskQueue without removing items. It is invalidated by any
// mutation of the queue.
type Cursor struct {
	q   *TaskQueue
	pos int
}

// Valid reports whether the cursor points at an element.
func (c Cursor) Valid() bool {
	return c.q != nil && c.pos < c.q.items.Len()
}

// Handle returns the element under the cursor.
func (c Cursor) Handle() Handle {
	return c.q.items.At(c.pos)
}

// Next advances to the following element.
func (c Cursor) Next() Cursor {
	return Cursor{q: c.q, pos: c.pos + 1}
}
