// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-async components.

package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/fake"
	"github.com/momentics/hioload-async/internal/concurrency"
	"github.com/momentics/hioload-async/pool"
	"github.com/momentics/hioload-async/protocol/httpproc"
	"github.com/momentics/hioload-async/server"
	"github.com/momentics/hioload-async/transport"
	"github.com/valyala/fasthttp"
)

// BenchmarkBufferPoolAllocation tests I/O buffer checkout and return.
func BenchmarkBufferPoolAllocation(b *testing.B) {
	buffers := pool.NewBytePool(4096, 1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buffers.PutBuffer(buffers.GetBuffer())
		}
	})
}

// BenchmarkProcessorIterate measures raw step throughput with 1k live tasks.
func BenchmarkProcessorIterate(b *testing.B) {
	p := concurrency.NewProcessor(concurrency.DefaultProcessorConfig())
	step := api.CoroutineFunc(func() api.Action { return api.ActionProceed })
	for i := 0; i < 1000; i++ {
		p.AddCoroutine(step)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Iterate(100)
	}
	b.StopTimer()
	p.Close()
}

// BenchmarkProcessorWaitingScan measures promotion cost when most tasks wait.
func BenchmarkProcessorWaitingScan(b *testing.B) {
	p := concurrency.NewProcessor(concurrency.ProcessorConfig{CheckWaitingInterval: 1})
	wait := api.CoroutineFunc(func() api.Action { return api.ActionWait })
	for i := 0; i < 1000; i++ {
		p.AddWaitingCoroutine(wait)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Iterate(100)
	}
	b.StopTimer()
	p.Close()
}

// BenchmarkHTTPCoroutine measures one keep-alive request cycle on a fake stream.
func BenchmarkHTTPCoroutine(b *testing.B) {
	f := httpproc.NewFactory(httpproc.Components{
		Router: httpproc.NewRouter().GET("/", func(_ *fasthttp.Request, resp *fasthttp.Response) error {
			resp.SetBodyString("ok")
			return nil
		}),
	}, 1)
	s := fake.NewStream("")
	c := f.NewCoroutine(transport.NewConnState(s, pool.NewBytePool(4096, 1)))
	defer c.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Feed("GET / HTTP/1.1\r\nHost: b\r\n\r\n")
		for c.Step() != api.ActionWait {
		}
	}
}

// BenchmarkHandlerDispatch measures HandleConnection fan-out into worker inboxes.
func BenchmarkHandlerDispatch(b *testing.B) {
	cfg := server.DefaultConfig()
	cfg.Workers = 4
	cfg.IdleSleep = time.Millisecond
	h, err := server.NewAsyncConnectionHandler(cfg, &fake.Factory{})
	if err != nil {
		b.Fatal(err)
	}
	if err := h.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	defer h.Shutdown(context.Background())

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h.HandleConnection(fake.NewStream(""))
		}
	})
}
