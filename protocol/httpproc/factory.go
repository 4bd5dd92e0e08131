// File: protocol/httpproc/factory.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/pool"
	"github.com/momentics/hioload-async/transport"
)

// DefaultPoolSize is the number of idle coroutines a Factory retains.
const DefaultPoolSize = 256

// Components are the collaborators shared by every coroutine of a Factory.
// They must not be modified once connections are being served.
type Components struct {
	Router       *Router
	ErrorHandler ErrorHandler
	Interceptors []RequestInterceptor
	// MaxRequestSize caps the declared Content-Length; 0 means unlimited.
	MaxRequestSize int
}

// Factory builds request-processing coroutines, recycling them through a
// bounded pool.
type Factory struct {
	comp Components
	pool *pool.Pool[*Coroutine]
	// fallback is the handler the factory was built with.
	fallback ErrorHandler
}

// NewFactory creates a factory. A nil router serves 404 for everything; a
// nil error handler is replaced by DefaultErrorHandler.
func NewFactory(comp Components, poolSize int) *Factory {
	if comp.Router == nil {
		comp.Router = NewRouter()
	}
	if comp.ErrorHandler == nil {
		comp.ErrorHandler = &DefaultErrorHandler{}
	}
	if poolSize < 0 {
		poolSize = DefaultPoolSize
	}
	return &Factory{
		comp:     comp,
		pool:     pool.NewPool(poolSize, newCoroutine, nil),
		fallback: comp.ErrorHandler,
	}
}

// SetErrorHandler replaces the error handler; nil restores the one the
// factory was created with.
func (f *Factory) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		h = f.fallback
	}
	f.comp.ErrorHandler = h
}

// AddRequestInterceptor appends an interceptor; interceptors run in order.
func (f *Factory) AddRequestInterceptor(i RequestInterceptor) {
	if i != nil {
		f.comp.Interceptors = append(f.comp.Interceptors, i)
	}
}

// NewCoroutine binds a pooled coroutine to state.
func (f *Factory) NewCoroutine(state *transport.ConnState) api.Coroutine {
	c := f.pool.Get()
	c.bind(&f.comp, state, f.recycle)
	return c
}

func (f *Factory) recycle(c *Coroutine) {
	f.pool.Put(c)
}

// Idle returns the number of pooled coroutines.
func (f *Factory) Idle() int {
	return f.pool.Len()
}
