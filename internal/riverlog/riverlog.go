// Package riverlog provides the river channel core's structured logging,
// adapted from this corpus's internal/logger package: a slog.Logger behind
// a package-level accessor, JSON output with configurable level and
// destination, with field keys
// scoped to this protocol instead of the filesystem-protocol field set the
// corpus ships.
package riverlog

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Standard field keys for structured logging across the channel core.
const (
	KeyChannel     = "channel"     // transport connection key
	KeyVersion     = "version"     // negotiated protocol version
	KeyInvocation  = "invocation"  // 16-bit invocation id
	KeyOpcode      = "opcode"      // wire opcode name
	KeyKind        = "kind"        // OpenSession | MethodInvocation
	KeyMethod      = "method"      // method name, when known
	KeyTraceID     = "trace_id"    // OpenTelemetry trace id, if a span is active
)

var (
	currentLevel atomic.Int32 // slog.Level, stored as int32

	mu      sync.RWMutex
	output  io.Writer = os.Stderr
	slogger *slog.Logger
)

func init() {
	currentLevel.Store(int32(slog.LevelInfo))
	reconfigure()
}

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(currentLevel.Load()))
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: levelVar})
	slogger = slog.New(handler)
}

// SetLevel sets the minimum log level: "DEBUG", "INFO", "WARN", or "ERROR".
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(slog.LevelDebug))
	case "WARN":
		currentLevel.Store(int32(slog.LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(slog.LevelError))
	default:
		currentLevel.Store(int32(slog.LevelInfo))
	}
	reconfigure()
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	reconfigure()
}

// L returns the current package logger. Safe for concurrent use.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}
