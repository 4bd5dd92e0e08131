// File: cmd/hioload-async/main.go
// Package main
// Demo HTTP server running on the cooperative coroutine workers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-async/protocol/httpproc"
	"github.com/momentics/hioload-async/server"
	"github.com/valyala/fasthttp"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseFlags builds the config from defaults, an optional TOML file and
// command-line flags, in increasing precedence.
func parseFlags(args []string) (*server.Config, error) {
	cfg := server.DefaultConfig()
	fs := flag.NewFlagSet("hioload-async", flag.ContinueOnError)
	configPath := bindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configPath == "" {
		return cfg, nil
	}

	cfg, err := server.LoadConfigFile(*configPath)
	if err != nil {
		return nil, err
	}
	fs = flag.NewFlagSet("hioload-async", flag.ContinueOnError)
	bindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *server.Config) *string {
	configPath := fs.String("config", "", "TOML config file")
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker threads")
	fs.IntVar(&cfg.StepBudget, "step-budget", cfg.StepBudget, "coroutine steps per iteration")
	fs.DurationVar(&cfg.IdleSleep, "idle-sleep", cfg.IdleSleep, "worker back-off when idle")
	fs.IntVar(&cfg.CheckWaitingInterval, "check-waiting", cfg.CheckWaitingInterval, "busy iterations between waiting-queue scans")
	fs.IntVar(&cfg.SleepThreshold, "sleep-threshold", cfg.SleepThreshold, "idle iterations before sleeping")
	fs.IntVar(&cfg.IOBufferSize, "io-buffer", cfg.IOBufferSize, "per-connection input buffer size")
	fs.IntVar(&cfg.BufferPoolSize, "buffer-pool", cfg.BufferPoolSize, "idle I/O buffers retained")
	fs.IntVar(&cfg.CoroutinePoolSize, "coroutine-pool", cfg.CoroutinePoolSize, "idle coroutines retained")
	fs.BoolVar(&cfg.PinWorkers, "pin", cfg.PinWorkers, "pin workers to CPUs")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace|debug|info|notice|warn|error|off")
	fs.IntVar(&cfg.MaxRequestSize, "max-request", cfg.MaxRequestSize, "max request body size in bytes, 0 = unlimited")
	fs.IntVar(&cfg.ErrorLogRate, "error-log-rate", cfg.ErrorLogRate, "failure logs per category per minute, 0 = unthrottled")
	return configPath
}

func run(cfg *server.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := server.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := server.NewLogger(os.Stderr, level)

	var srv *server.Server
	router := httpproc.NewRouter().
		GET("/", func(_ *fasthttp.Request, resp *fasthttp.Response) error {
			resp.Header.SetContentType("text/plain; charset=utf-8")
			resp.SetBodyString("hioload-async\n")
			return nil
		}).
		POST("/echo", func(req *fasthttp.Request, resp *fasthttp.Response) error {
			resp.Header.SetContentTypeBytes(req.Header.ContentType())
			resp.SetBody(req.Body())
			return nil
		}).
		GET("/stats", func(_ *fasthttp.Request, resp *fasthttp.Response) error {
			srv.PublishMetrics()
			body, err := json.Marshal(srv.Metrics().GetSnapshot())
			if err != nil {
				return err
			}
			resp.Header.SetContentType("application/json")
			resp.SetBody(body)
			return nil
		}).
		GET("/debug", func(_ *fasthttp.Request, resp *fasthttp.Response) error {
			body, err := json.Marshal(srv.Probes().DumpState())
			if err != nil {
				return err
			}
			resp.Header.SetContentType("application/json")
			resp.SetBody(body)
			return nil
		})

	srv, err = server.New(cfg, router, server.WithServerLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
