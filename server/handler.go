// File: server/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/pool"
	"github.com/momentics/hioload-async/protocol/httpproc"
	"github.com/momentics/hioload-async/transport"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// CoroutineFactory builds the task that serves one connection.
type CoroutineFactory interface {
	NewCoroutine(state *transport.ConnState) api.Coroutine
}

// httpConfigurable is implemented by factories that accept HTTP collaborators.
type httpConfigurable interface {
	SetErrorHandler(httpproc.ErrorHandler)
	AddRequestInterceptor(httpproc.RequestInterceptor)
}

// HandlerStats aggregates all workers of a handler.
type HandlerStats struct {
	Workers  []WorkerStats
	Balanced uint64
	Dropped  uint64
}

// AsyncConnectionHandler spreads accepted connections over a fixed set of
// workers in round-robin order.
type AsyncConnectionHandler struct {
	cfg      *Config
	factory  CoroutineFactory
	workers  []*Worker
	buffers  *pool.BytePool
	log      *Logger
	balancer atomic.Uint64
	dropped  atomic.Uint64
	stopped  atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

var (
	_ api.ConnectionHandler = (*AsyncConnectionHandler)(nil)
	_ api.GracefulShutdown  = (*AsyncConnectionHandler)(nil)
)

// HandlerOption customizes handler initialization.
type HandlerOption func(*AsyncConnectionHandler)

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(log *Logger) HandlerOption {
	return func(h *AsyncConnectionHandler) {
		h.log = log
	}
}

// WithBufferPool shares an existing I/O buffer pool. Its buffer size wins
// over Config.IOBufferSize.
func WithBufferPool(p *pool.BytePool) HandlerOption {
	return func(h *AsyncConnectionHandler) {
		h.buffers = p
	}
}

// NewAsyncConnectionHandler creates cfg.Workers workers that build tasks
// with factory.
func NewAsyncConnectionHandler(cfg *Config, factory CoroutineFactory, opts ...HandlerOption) (*AsyncConnectionHandler, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil coroutine factory", api.ErrInvalidArgument)
	}
	h, err := newHandler(cfg, opts)
	if err != nil {
		return nil, err
	}
	h.setFactory(factory)
	return h, nil
}

// NewHTTPConnectionHandler creates a handler whose tasks serve HTTP/1.1
// through router.
func NewHTTPConnectionHandler(cfg *Config, router *httpproc.Router, opts ...HandlerOption) (*AsyncConnectionHandler, error) {
	h, err := newHandler(cfg, opts)
	if err != nil {
		return nil, err
	}
	h.setFactory(httpproc.NewFactory(httpproc.Components{
		Router: router,
		ErrorHandler: &httpproc.DefaultErrorHandler{
			Logger:  h.log,
			Limiter: newFailureLimiter(h.cfg.ErrorLogRate),
		},
		MaxRequestSize: h.cfg.MaxRequestSize,
	}, h.cfg.CoroutinePoolSize))
	return h, nil
}

func newHandler(cfg *Config, opts []HandlerOption) (*AsyncConnectionHandler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &AsyncConnectionHandler{cfg: cfg}
	for _, o := range opts {
		o(h)
	}
	if h.buffers == nil {
		h.buffers = pool.NewBytePool(cfg.IOBufferSize, cfg.BufferPoolSize)
	}
	return h, nil
}

func (h *AsyncConnectionHandler) setFactory(factory CoroutineFactory) {
	h.factory = factory
	h.workers = make([]*Worker, h.cfg.Workers)
	for i := range h.workers {
		h.workers[i] = newWorker(i, h.cfg, factory, h.log)
	}
}

// SetErrorHandler replaces the HTTP error handler; nil restores the default.
// Only valid before Start.
func (h *AsyncConnectionHandler) SetErrorHandler(eh httpproc.ErrorHandler) error {
	return h.configure(func(c httpConfigurable) { c.SetErrorHandler(eh) })
}

// AddRequestInterceptor appends a request interceptor. Only valid before Start.
func (h *AsyncConnectionHandler) AddRequestInterceptor(i httpproc.RequestInterceptor) error {
	if i == nil {
		return fmt.Errorf("%w: nil interceptor", api.ErrInvalidArgument)
	}
	return h.configure(func(c httpConfigurable) { c.AddRequestInterceptor(i) })
}

func (h *AsyncConnectionHandler) configure(fn func(httpConfigurable)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped.Load() {
		return api.ErrHandlerRunning
	}
	c, ok := h.factory.(httpConfigurable)
	if !ok {
		return fmt.Errorf("%w: factory %T has no HTTP collaborators", api.ErrInvalidArgument, h.factory)
	}
	fn(c)
	return nil
}

// Start launches every worker on its own goroutine.
func (h *AsyncConnectionHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		return api.ErrHandlerClosed
	}
	if h.started {
		return api.ErrHandlerRunning
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.group, ctx = errgroup.WithContext(ctx)
	for _, w := range h.workers {
		w := w
		h.group.Go(func() error { return w.Run(ctx) })
	}
	h.started = true
	h.log.Info().
		Int("workers", len(h.workers)).
		Int("step_budget", h.cfg.StepBudget).
		Dur("idle_sleep", h.cfg.IdleSleep).
		Log("connection handler started")
	return nil
}

// HandleConnection implements api.ConnectionHandler. It never blocks; after
// Shutdown the connection is closed immediately.
func (h *AsyncConnectionHandler) HandleConnection(conn api.Stream) {
	if conn == nil {
		return
	}
	if h.stopped.Load() {
		h.dropped.Inc()
		_ = conn.Close()
		return
	}
	state := transport.NewConnState(conn, h.buffers)
	idx := (h.balancer.Inc() - 1) % uint64(len(h.workers))
	if err := h.workers[idx].AddConnection(state); err != nil {
		h.dropped.Inc()
		state.Release()
		h.log.Debug().Uint64("worker", idx).Err(err).Log("connection dropped")
	}
}

// Shutdown stops all workers and waits for them to release their tasks.
func (h *AsyncConnectionHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped.Swap(true) {
		h.mu.Unlock()
		return nil
	}
	if !h.started {
		h.mu.Unlock()
		for _, w := range h.workers {
			w.stop()
		}
		return nil
	}
	h.cancel()
	group := h.group
	h.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		h.log.Info().Uint64("dropped", h.dropped.Load()).Log("connection handler stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("connection handler shutdown: %w", ctx.Err())
	}
}

// Workers returns the worker count.
func (h *AsyncConnectionHandler) Workers() int {
	return len(h.workers)
}

// Stats returns a snapshot of every worker. Safe for concurrent use.
func (h *AsyncConnectionHandler) Stats() HandlerStats {
	stats := HandlerStats{
		Workers:  make([]WorkerStats, len(h.workers)),
		Balanced: h.balancer.Load(),
		Dropped:  h.dropped.Load(),
	}
	for i, w := range h.workers {
		stats.Workers[i] = w.Stats()
	}
	return stats
}
