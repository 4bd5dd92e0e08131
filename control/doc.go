// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer.
//
// Provides concurrent-safe state handling primitives including:
//   - A metrics registry that components publish snapshots into
//   - Named debug probes evaluated on demand
//   - Process-level platform probes
package control
