// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds the cooperative scheduling core of hioload-async:
// the handle-based TaskQueue, the single-threaded Processor that steps
// coroutines between an active and a waiting queue, the SpinLock guarding
// worker inboxes, and OS thread pinning for workers.
package concurrency
