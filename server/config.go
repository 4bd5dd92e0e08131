// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/internal/concurrency"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr           string        // TCP bind address, e.g. ":8000"
	Workers              int           // number of worker threads, fixed for the handler lifetime
	StepBudget           int           // max coroutine steps per Iterate call
	IdleSleep            time.Duration // back-off once a worker's processor reports idle
	CheckWaitingInterval int           // busy iterations between waiting-queue scans
	SleepThreshold       int           // idle iterations before a worker sleeps
	IOBufferSize         int           // per-connection input buffer size
	BufferPoolSize       int           // idle I/O buffers retained
	CoroutinePoolSize    int           // idle request coroutines retained
	PinWorkers           bool          // pin worker i to CPU i % NumCPU
	ShutdownTimeout      time.Duration // graceful shutdown timeout
	LogLevel             string        // see ParseLevel
	MaxRequestSize       int           // max declared request body, 0 = unlimited
	ErrorLogRate         int           // failure logs per category per minute, 0 = unthrottled
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:           ":8000",
		Workers:              runtime.NumCPU(),
		StepBudget:           100,
		IdleSleep:            10 * time.Millisecond,
		CheckWaitingInterval: concurrency.DefaultCheckWaitingInterval,
		SleepThreshold:       concurrency.DefaultSleepThreshold,
		IOBufferSize:         4 * 1024,
		BufferPoolSize:       1024,
		CoroutinePoolSize:    1024,
		PinWorkers:           false,
		ShutdownTimeout:      30 * time.Second,
		LogLevel:             "info",
		MaxRequestSize:       1 << 20,
		ErrorLogRate:         10,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", api.ErrInvalidArgument, c.Workers)
	case c.StepBudget <= 0:
		return fmt.Errorf("%w: step budget must be positive, got %d", api.ErrInvalidArgument, c.StepBudget)
	case c.IdleSleep < 0:
		return fmt.Errorf("%w: negative idle sleep %v", api.ErrInvalidArgument, c.IdleSleep)
	case c.CheckWaitingInterval <= 0:
		return fmt.Errorf("%w: check waiting interval must be positive, got %d", api.ErrInvalidArgument, c.CheckWaitingInterval)
	case c.SleepThreshold < 0:
		return fmt.Errorf("%w: negative sleep threshold %d", api.ErrInvalidArgument, c.SleepThreshold)
	case c.IOBufferSize < 64:
		return fmt.Errorf("%w: io buffer size %d below 64 bytes", api.ErrInvalidArgument, c.IOBufferSize)
	case c.BufferPoolSize < 0, c.CoroutinePoolSize < 0:
		return fmt.Errorf("%w: negative pool size", api.ErrInvalidArgument)
	case c.MaxRequestSize < 0:
		return fmt.Errorf("%w: negative max request size %d", api.ErrInvalidArgument, c.MaxRequestSize)
	case c.ErrorLogRate < 0:
		return fmt.Errorf("%w: negative error log rate %d", api.ErrInvalidArgument, c.ErrorLogRate)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) processorConfig() concurrency.ProcessorConfig {
	return concurrency.ProcessorConfig{
		CheckWaitingInterval: c.CheckWaitingInterval,
		SleepThreshold:       c.SleepThreshold,
	}
}
