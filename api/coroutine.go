// File: api/coroutine.go
// Package api defines the cooperative task contract consumed by the Processor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// Action is the outcome of a single coroutine step.
type Action uint8

const (
	// ActionProceed means more steps remain and the task may run again immediately.
	ActionProceed Action = iota
	// ActionWait means the step could not complete without an external event.
	ActionWait
	// ActionFinish means the pipeline completed.
	ActionFinish
	// ActionError means an unrecoverable fault occurred.
	ActionError
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionWait:
		return "wait"
	case ActionFinish:
		return "finish"
	case ActionError:
		return "error"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Terminal reports whether the action retires the task.
func (a Action) Terminal() bool {
	return a == ActionFinish || a == ActionError
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	return a == ActionProceed || a == ActionWait || a.Terminal()
}

// Coroutine is a suspendable unit of work advanced one step at a time.
//
// Step must never block. Anything that cannot be satisfied right away is
// reported as ActionWait and retried later by the scheduler.
type Coroutine interface {
	// Step runs one unit of work.
	Step() Action

	// Err returns the cause of the last ActionError, if known.
	Err() error

	// Release tears down owned resources. Called exactly once, after the
	// task returned a terminal action or when its scheduler shuts down.
	Release()
}

// Readiness is optionally implemented by coroutines that can cheaply tell
// whether their next step would make progress.
type Readiness interface {
	Ready() bool
}

// CoroutineFunc adapts a step function into a Coroutine with no owned resources.
type CoroutineFunc func() Action

func (f CoroutineFunc) Step() Action { return f() }
func (CoroutineFunc) Err() error     { return nil }
func (CoroutineFunc) Release()       {}
