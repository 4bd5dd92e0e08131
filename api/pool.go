// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs for buffer and object reuse.

package api

// ObjectPool provides checkout/return of reusable objects with a fixed
// retention capacity.
type ObjectPool[T any] interface {
	// Get returns a pooled instance, or a fresh one if none is free.
	Get() T

	// Put returns an instance for reuse. Instances beyond capacity are dropped.
	Put(obj T)

	// Cap returns the maximum number of retained instances.
	Cap() int
}
