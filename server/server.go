// File: server/server.go
// Package server wires listener, connection handler and workers into a
// runnable HTTP server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/control"
	"github.com/momentics/hioload-async/protocol/httpproc"
	"github.com/momentics/hioload-async/transport"
	"golang.org/x/sync/errgroup"
)

const maxAcceptBackoff = time.Second

// Server is the high-level facade: it accepts TCP connections and hands
// them to an AsyncConnectionHandler.
type Server struct {
	cfg     *Config
	handler *AsyncConnectionHandler
	log     *Logger
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes

	mu       sync.Mutex
	ln       net.Listener
	serving  bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

var _ api.GracefulShutdown = (*Server)(nil)

// ServerOption customizes server initialization.
type ServerOption func(*serverOptions)

type serverOptions struct {
	log          *Logger
	interceptors []httpproc.RequestInterceptor
	errorHandler httpproc.ErrorHandler
	metrics      *control.MetricsRegistry
}

// WithServerLogger sets the logger shared by the server and its workers.
func WithServerLogger(log *Logger) ServerOption {
	return func(o *serverOptions) {
		o.log = log
	}
}

// WithInterceptor attaches request interceptors in FIFO order.
func WithInterceptor(i ...httpproc.RequestInterceptor) ServerOption {
	return func(o *serverOptions) {
		o.interceptors = append(o.interceptors, i...)
	}
}

// WithErrorHandler overrides the default plain-text error handler.
func WithErrorHandler(h httpproc.ErrorHandler) ServerOption {
	return func(o *serverOptions) {
		o.errorHandler = h
	}
}

// WithMetrics publishes stats into an existing registry.
func WithMetrics(mr *control.MetricsRegistry) ServerOption {
	return func(o *serverOptions) {
		o.metrics = mr
	}
}

// New builds a Server routing requests through router.
func New(cfg *Config, router *httpproc.Router, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	handler, err := NewHTTPConnectionHandler(cfg, router, WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	if o.errorHandler != nil {
		if err := handler.SetErrorHandler(o.errorHandler); err != nil {
			return nil, err
		}
	}
	for _, i := range o.interceptors {
		if err := handler.AddRequestInterceptor(i); err != nil {
			return nil, err
		}
	}
	if o.metrics == nil {
		o.metrics = control.NewMetricsRegistry()
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		log:     o.log,
		metrics: o.metrics,
		probes:  control.NewDebugProbes(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	control.RegisterPlatformProbes(s.probes)
	s.probes.RegisterProbe("server.workers", func() any { return s.handler.Stats().Workers })
	return s, nil
}

// ListenAndServe listens on Config.ListenAddr and serves until ctx is done
// or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns after the listener closed and
// every worker released its tasks.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		_ = ln.Close()
		return api.ErrHandlerRunning
	}
	s.serving = true
	s.ln = ln
	s.mu.Unlock()
	defer close(s.done)

	if err := s.handler.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Log("server listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.quit:
		}
		return ignoreClosed(ln.Close())
	})
	g.Go(func() error {
		defer s.signalQuit()
		return s.acceptLoop(ln)
	})
	err := g.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if herr := s.handler.Shutdown(sctx); err == nil {
		err = herr
	}
	s.PublishMetrics()
	s.log.Info().Log("server stopped")
	return err
}

func (s *Server) acceptLoop(ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), maxAcceptBackoff)
				s.log.Warning().Err(err).Dur("retry_in", backoff).Log("accept failed")
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.handler.HandleConnection(transport.NewNetConn(conn))
	}
}

func (s *Server) signalQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting and waits until Serve returned. Without a
// running Serve it only stops the connection handler.
func (s *Server) Shutdown(ctx context.Context) error {
	s.signalQuit()
	s.mu.Lock()
	serving := s.serving
	s.mu.Unlock()
	if !serving {
		return s.handler.Shutdown(ctx)
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("server shutdown: %w", ctx.Err())
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Handler exposes the connection handler.
func (s *Server) Handler() *AsyncConnectionHandler {
	return s.handler
}

// Stats returns the handler snapshot.
func (s *Server) Stats() HandlerStats {
	return s.handler.Stats()
}

// Metrics returns the registry Stats are published into.
func (s *Server) Metrics() *control.MetricsRegistry {
	return s.metrics
}

// Probes returns the debug probes.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}

// PublishMetrics copies the current stats into the metrics registry.
func (s *Server) PublishMetrics() {
	stats := s.handler.Stats()
	values := map[string]any{
		"handler.balanced": stats.Balanced,
		"handler.dropped":  stats.Dropped,
		"handler.workers":  len(stats.Workers),
	}
	for _, w := range stats.Workers {
		prefix := "worker." + strconv.Itoa(w.ID) + "."
		values[prefix+"active"] = w.Active
		values[prefix+"waiting"] = w.Waiting
		values[prefix+"inbox"] = w.Inbox
		values[prefix+"accepted"] = w.Accepted
		values[prefix+"finished"] = w.Finished
		values[prefix+"failed"] = w.Failed
		values[prefix+"steps"] = w.Steps
	}
	s.metrics.SetMany(values)
}
