// Package log wires structured logging and the operation journal.
//
// Loggers travel through context.Context so providers and the pipeline log
// with the request id attached. The journal records one entry per operation
// run by a CLI invocation and persists it as a JSON session file under the
// gaiasource home directory.
package log

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Format selects the logger output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New creates a logger writing to w at the named level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func New(w io.Writer, level string, format Format) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	})
	if format == FormatJSON {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

// Discard is a logger that drops everything, used by tests and library
// callers that did not attach one.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the attached logger or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}
