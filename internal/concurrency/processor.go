// File: internal/concurrency/processor.go
// Package concurrency implements the cooperative coroutine Processor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Processor owns an active and a waiting queue for one scheduling domain.
// It is driven by exactly one goroutine; only Stats may be called concurrently.

package concurrency

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-async/api"
	"go.uber.org/atomic"
)

const (
	// DefaultCheckWaitingInterval is the number of busy Iterate calls between
	// two scans of the waiting queue.
	DefaultCheckWaitingInterval = 10
	// DefaultSleepThreshold is the number of consecutive idle Iterate calls
	// before ShouldSleep reports true.
	DefaultSleepThreshold = 4
)

// ProcessorConfig tunes a Processor.
type ProcessorConfig struct {
	CheckWaitingInterval int
	SleepThreshold       int
	Logger               *logiface.Logger[logiface.Event]
	// FailureLimiter throttles warning logs for failed coroutines, keyed by
	// error text. Nil disables throttling.
	FailureLimiter *catrate.Limiter
}

// DefaultProcessorConfig returns the stock cadence settings.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		CheckWaitingInterval: DefaultCheckWaitingInterval,
		SleepThreshold:       DefaultSleepThreshold,
	}
}

// ProcessorStats is a point-in-time snapshot of a Processor.
type ProcessorStats struct {
	Active   int
	Waiting  int
	Admitted uint64
	Finished uint64
	Failed   uint64
	Promoted uint64
	Steps    uint64
}

// Processor is a single-threaded cooperative scheduler.
type Processor struct {
	cfg     ProcessorConfig
	log     *logiface.Logger[logiface.Event]
	tasks   taskArena
	active  TaskQueue
	waiting TaskQueue

	sleepCountdown             int
	checkWaitingQueueCountdown int

	// published for Stats readers on other goroutines
	activeLen  atomic.Int64
	waitingLen atomic.Int64
	admitted   atomic.Uint64
	finished   atomic.Uint64
	failed     atomic.Uint64
	promoted   atomic.Uint64
	steps      atomic.Uint64
}

// NewProcessor creates a Processor. Non-positive cadence values fall back to
// the defaults.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.CheckWaitingInterval <= 0 {
		cfg.CheckWaitingInterval = DefaultCheckWaitingInterval
	}
	if cfg.SleepThreshold < 0 {
		cfg.SleepThreshold = DefaultSleepThreshold
	}
	return &Processor{
		cfg:                        cfg,
		log:                        cfg.Logger,
		sleepCountdown:             cfg.SleepThreshold,
		checkWaitingQueueCountdown: cfg.CheckWaitingInterval,
	}
}

// AddCoroutine admits c to the tail of the active queue.
func (p *Processor) AddCoroutine(c api.Coroutine) {
	p.active.PushBack(p.admit(c))
	p.publish()
}

// AddWaitingCoroutine admits c to the tail of the waiting queue.
func (p *Processor) AddWaitingCoroutine(c api.Coroutine) {
	p.waiting.PushBack(p.admit(c))
	p.publish()
}

func (p *Processor) admit(c api.Coroutine) Handle {
	if c == nil {
		panic(api.ErrNilCoroutine)
	}
	p.admitted.Inc()
	return p.tasks.insert(c)
}

// Iterate performs up to maxSteps single-step advances in FIFO order and
// reports whether the active queue still holds work afterwards.
func (p *Processor) Iterate(maxSteps int) bool {
	for i := 0; i < maxSteps; i++ {
		h, ok := p.active.PopFront()
		if !ok {
			break
		}
		c, _ := p.tasks.get(h)
		switch action, err := p.step(c); action {
		case api.ActionProceed:
			p.active.PushBack(h)
		case api.ActionWait:
			p.waiting.PushBack(h)
		case api.ActionFinish, api.ActionError:
			p.retire(h, action, err)
		}
	}

	p.considerCheckWaitingQueue(p.active.Len() == 0)

	hasWork := p.active.Len() > 0
	if hasWork {
		p.sleepCountdown = p.cfg.SleepThreshold
	} else if p.sleepCountdown > 0 {
		p.sleepCountdown--
	}
	p.publish()
	return hasWork
}

// ShouldSleep reports whether the owner should back off: the active queue is
// empty and has stayed empty for SleepThreshold consecutive Iterate calls.
func (p *Processor) ShouldSleep() bool {
	return p.active.Len() == 0 && p.sleepCountdown == 0
}

// considerCheckWaitingQueue scans the waiting queue either right away or when
// the countdown elapses. It reports whether any task was promoted.
func (p *Processor) considerCheckWaitingQueue(immediate bool) bool {
	if p.waiting.Len() == 0 {
		p.checkWaitingQueueCountdown = p.cfg.CheckWaitingInterval
		return false
	}
	if !immediate {
		p.checkWaitingQueueCountdown--
		if p.checkWaitingQueueCountdown > 0 {
			return false
		}
	}
	p.checkWaitingQueueCountdown = p.cfg.CheckWaitingInterval
	return p.checkWaitingQueue()
}

// checkWaitingQueue makes a single FIFO pass over the waiting queue, moving
// every ready task to the active tail. Order among the remaining tasks is kept.
func (p *Processor) checkWaitingQueue() bool {
	var promoted bool
	for n := p.waiting.Len(); n > 0; n-- {
		h, _ := p.waiting.PopFront()
		c, _ := p.tasks.get(h)

		if r, ok := c.(api.Readiness); ok {
			if r.Ready() {
				p.active.PushBack(h)
				p.promoted.Inc()
				promoted = true
			} else {
				p.waiting.PushBack(h)
			}
			continue
		}

		switch action, err := p.step(c); action {
		case api.ActionWait:
			p.waiting.PushBack(h)
		case api.ActionProceed:
			p.active.PushBack(h)
			p.promoted.Inc()
			promoted = true
		case api.ActionFinish, api.ActionError:
			p.retire(h, action, err)
		}
	}
	return promoted
}

// step invokes one unit of work. A panicking step or an undefined action
// fails only its own task.
func (p *Processor) step(c api.Coroutine) (action api.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			action, err = api.ActionError, fmt.Errorf("coroutine panic: %v", r)
		}
	}()
	p.steps.Inc()
	action = c.Step()
	switch {
	case action == api.ActionError:
		err = c.Err()
	case !action.Valid():
		action, err = api.ActionError, fmt.Errorf("%w: coroutine returned %v", api.ErrInvalidAction, action)
	}
	return action, err
}

func (p *Processor) retire(h Handle, action api.Action, err error) {
	c, ok := p.tasks.remove(h)
	if !ok {
		return
	}
	p.release(h, c)
	if action == api.ActionError {
		p.failed.Inc()
		p.logFailure(h, err)
	} else {
		p.finished.Inc()
	}
}

func (p *Processor) logFailure(h Handle, err error) {
	if err == nil {
		err = errors.New("unspecified coroutine failure")
	}
	if _, ok := p.cfg.FailureLimiter.Allow(err.Error()); !ok {
		return
	}
	p.log.Warning().
		Uint64("task", uint64(h)).
		Err(err).
		Log("coroutine failed")
}

func (p *Processor) release(h Handle, c api.Coroutine) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Err().
				Uint64("task", uint64(h)).
				Str("panic", fmt.Sprint(r)).
				Log("coroutine release panicked")
		}
	}()
	c.Release()
}

// Close releases every task still held in either queue. The Processor is
// empty afterwards and may be reused.
func (p *Processor) Close() {
	for _, q := range []*TaskQueue{&p.active, &p.waiting} {
		for cur := q.First(); cur.Valid(); cur = cur.Next() {
			if c, ok := p.tasks.remove(cur.Handle()); ok {
				p.release(cur.Handle(), c)
			}
		}
		q.Clear()
	}
	p.publish()
}

// Len returns the number of tasks owned by the Processor.
func (p *Processor) Len() int {
	return p.tasks.len()
}

func (p *Processor) publish() {
	p.activeLen.Store(int64(p.active.Len()))
	p.waitingLen.Store(int64(p.waiting.Len()))
}

// Stats returns a snapshot of queue depths and counters. Safe for concurrent use.
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Active:   int(p.activeLen.Load()),
		Waiting:  int(p.waitingLen.Load()),
		Admitted: p.admitted.Load(),
		Finished: p.finished.Load(),
		Failed:   p.failed.Load(),
		Promoted: p.promoted.Load(),
		Steps:    p.steps.Load(),
	}
}
