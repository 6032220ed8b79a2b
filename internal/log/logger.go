// Package log wraps log/slog with a component-scoped logger so every line
// carries the subsystem it originated from.
package log

import (
	"log/slog"
	"os"
)

// Standard component names used across the codebase.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentAuth    = "auth"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)

// Logger couples a slog.Logger with the component it reports for.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger construction options.
type Config struct {
	Level   slog.Level
	Handler slog.Handler
}

// New creates a root logger. When no handler is given a text handler on
// stdout is used.
func New(cfg Config) *Logger {
	handler := cfg.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level})
	}
	return &Logger{Logger: slog.New(handler), component: ComponentApp}
}

// WithComponent returns a logger whose lines are tagged with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("component", component),
		component: component,
	}
}

// With returns a logger with extra attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// Component returns the component this logger reports for.
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs l as the process-wide slog default so packages that
// log through bare slog share the same handler.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
