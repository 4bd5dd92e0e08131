// File: server/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/momentics/hioload-async/api"
)

// Logger is the structured logger type used throughout the server.
type Logger = logiface.Logger[logiface.Event]

// NewLogger builds a JSON logger writing to w.
func NewLogger(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// ParseLevel maps a level name onto a logiface level. The empty string
// means info.
func ParseLevel(name string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info", "informational":
		return logiface.LevelInformational, nil
	case "trace":
		return logiface.LevelTrace, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "warn", "warning":
		return logiface.LevelWarning, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "off", "none", "disabled":
		return logiface.LevelDisabled, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("%w: unknown log level %q", api.ErrInvalidArgument, name)
}

// newFailureLimiter allows perMinute log lines per failure category.
func newFailureLimiter(perMinute int) *catrate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return catrate.NewLimiter(map[time.Duration]int{time.Minute: perMinute})
}
