// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OS thread ownership and CPU affinity for worker goroutines.

package concurrency

import (
	"fmt"
	"runtime"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// PinCurrentThread wires the calling goroutine to its own OS thread and, when
// cpuID >= 0, restricts that thread to the CPU cpuID % NumCPUs().
// The caller must invoke UnpinCurrentThread from the same goroutine.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	cpu := cpuID % NumCPUs()
	if err := platformPinCurrentThread(cpu); err != nil {
		return fmt.Errorf("pin thread to cpu %d: %w", cpu, err)
	}
	return nil
}

// UnpinCurrentThread clears the CPU mask and releases the OS thread.
func UnpinCurrentThread() error {
	defer runtime.UnlockOSThread()
	return platformUnpinCurrentThread()
}
