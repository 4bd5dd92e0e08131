// File: internal/concurrency/affinity_other.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread locking still applies; CPU masks are not supported here.

package concurrency

func platformPinCurrentThread(int) error { return nil }

func platformUnpinCurrentThread() error { return nil }
