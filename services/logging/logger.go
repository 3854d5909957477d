// Package logging provides the structured logger used by the host build and
// the minimal interface the control services log through.
//
// Host binaries wrap log/slog (JSON or text). The TinyGo build passes a
// Println logger, which writes through the runtime's println.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is what services depend on. *slog.Logger and *Logger satisfy it.
type Log interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options selects level, format and destination.
type Options struct {
	Level  string
	Format string
	Output string
}

// Logger wraps slog.Logger with the default vehicle fields. Safe for
// concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger tagged with version and node.
func New(opts Options, version, node string) *Logger {
	var output io.Writer
	switch strings.ToLower(opts.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(output, opts, version, node)
}

func newWithWriter(w io.Writer, opts Options, version, node string) *Logger {
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(w, hopts)
	default:
		handler = slog.NewJSONHandler(w, hopts)
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "vehiclecode"),
		slog.String("version", version),
		slog.String("node", node),
	})
	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel maps debug/info/warn/error to slog levels; unknown is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying extra attributes.
//
//	pdmLog := logger.With("component", "pdm")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is used before configuration is loaded.
func Default() *Logger {
	return New(Options{Level: "info", Format: "json", Output: "stdout"}, "dev", "")
}

// Nop discards everything. Handy in tests.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
