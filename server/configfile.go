// File: server/configfile.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for TOML files. Absent keys keep their defaults;
// durations are Go duration strings such as "10ms".
type fileConfig struct {
	ListenAddr           *string `toml:"listen_addr"`
	Workers              *int    `toml:"workers"`
	StepBudget           *int    `toml:"step_budget"`
	IdleSleep            *string `toml:"idle_sleep"`
	CheckWaitingInterval *int    `toml:"check_waiting_interval"`
	SleepThreshold       *int    `toml:"sleep_threshold"`
	IOBufferSize         *int    `toml:"io_buffer_size"`
	BufferPoolSize       *int    `toml:"buffer_pool_size"`
	CoroutinePoolSize    *int    `toml:"coroutine_pool_size"`
	PinWorkers           *bool   `toml:"pin_workers"`
	ShutdownTimeout      *string `toml:"shutdown_timeout"`
	LogLevel             *string `toml:"log_level"`
	MaxRequestSize       *int    `toml:"max_request_size"`
	ErrorLogRate         *int    `toml:"error_log_rate"`
}

// LoadConfigFile reads a TOML file over DefaultConfig and validates it.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes TOML data over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	setIf(&cfg.ListenAddr, fc.ListenAddr)
	setIf(&cfg.Workers, fc.Workers)
	setIf(&cfg.StepBudget, fc.StepBudget)
	setIf(&cfg.CheckWaitingInterval, fc.CheckWaitingInterval)
	setIf(&cfg.SleepThreshold, fc.SleepThreshold)
	setIf(&cfg.IOBufferSize, fc.IOBufferSize)
	setIf(&cfg.BufferPoolSize, fc.BufferPoolSize)
	setIf(&cfg.CoroutinePoolSize, fc.CoroutinePoolSize)
	setIf(&cfg.PinWorkers, fc.PinWorkers)
	setIf(&cfg.LogLevel, fc.LogLevel)
	setIf(&cfg.MaxRequestSize, fc.MaxRequestSize)
	setIf(&cfg.ErrorLogRate, fc.ErrorLogRate)
	if err := setDuration(&cfg.IdleSleep, fc.IdleSleep, "idle_sleep"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout, "shutdown_timeout"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, key string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
