// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded object pools for the connection path: a generic free-list Pool
// with explicit capacity and a BytePool of fixed-size I/O buffers built on it.
package pool
