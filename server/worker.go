// File: server/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"runtime"
	"time"

	"github.com/momentics/hioload-async/internal/concurrency"
	"github.com/momentics/hioload-async/transport"
	"go.uber.org/atomic"
)

// WorkerStats is a snapshot of one worker.
type WorkerStats struct {
	concurrency.ProcessorStats
	ID       int
	Inbox    int
	Accepted uint64
	Rejected uint64
	Running  bool
}

// Worker owns one Processor and drives it from a single OS thread.
type Worker struct {
	id         int
	cpu        int
	stepBudget int
	idleSleep  time.Duration
	proc       *concurrency.Processor
	inbox      *Inbox
	factory    CoroutineFactory
	log        *Logger

	accepted atomic.Uint64
	rejected atomic.Uint64
	running  atomic.Bool
}

func newWorker(id int, cfg *Config, factory CoroutineFactory, log *Logger) *Worker {
	pcfg := cfg.processorConfig()
	pcfg.Logger = log
	pcfg.FailureLimiter = newFailureLimiter(cfg.ErrorLogRate)
	cpu := -1
	if cfg.PinWorkers {
		cpu = id
	}
	return &Worker{
		id:         id,
		cpu:        cpu,
		stepBudget: cfg.StepBudget,
		idleSleep:  cfg.IdleSleep,
		proc:       concurrency.NewProcessor(pcfg),
		inbox:      NewInbox(),
		factory:    factory,
		log:        log,
	}
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// AddConnection queues state for this worker. Safe for concurrent use.
func (w *Worker) AddConnection(state *transport.ConnState) error {
	if err := w.inbox.Push(state); err != nil {
		w.rejected.Inc()
		return err
	}
	w.accepted.Inc()
	return nil
}

// Run drives the worker until ctx is done, then releases every queued task
// and pending connection.
func (w *Worker) Run(ctx context.Context) error {
	if err := concurrency.PinCurrentThread(w.cpu); err != nil {
		w.log.Warning().Int("worker", w.id).Err(err).Log("cpu pinning failed")
	}
	defer func() {
		if err := concurrency.UnpinCurrentThread(); err != nil {
			w.log.Debug().Int("worker", w.id).Err(err).Log("cpu unpin failed")
		}
	}()

	w.running.Store(true)
	defer w.stop()
	w.log.Debug().Int("worker", w.id).Int("cpu", w.cpu).Log("worker started")

	idle := time.NewTimer(w.idleSleep)
	defer idle.Stop()

	for ctx.Err() == nil {
		w.consume()
		for w.proc.Iterate(w.stepBudget) {
			w.consume()
			if ctx.Err() != nil {
				return nil
			}
		}
		if !w.proc.ShouldSleep() {
			runtime.Gosched()
			continue
		}
		idle.Reset(w.idleSleep)
		select {
		case <-ctx.Done():
		case <-idle.C:
		}
	}
	return nil
}

func (w *Worker) consume() {
	w.inbox.Drain(func(state *transport.ConnState) {
		c := w.factory.NewCoroutine(state)
		if c == nil {
			w.log.Err().Int("worker", w.id).Log("factory returned no coroutine")
			state.Release()
			return
		}
		w.proc.AddWaitingCoroutine(c)
	})
}

func (w *Worker) stop() {
	dropped := w.inbox.Close(func(state *transport.ConnState) {
		state.Release()
	})
	tasks := w.proc.Len()
	w.proc.Close()
	w.running.Store(false)
	w.log.Debug().
		Int("worker", w.id).
		Int("tasks", tasks).
		Int("pending", dropped).
		Log("worker stopped")
}

// Stats returns a snapshot. Safe for concurrent use.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ProcessorStats: w.proc.Stats(),
		ID:             w.id,
		Inbox:          w.inbox.Len(),
		Accepted:       w.accepted.Load(),
		Rejected:       w.rejected.Load(),
		Running:        w.running.Load(),
	}
}
