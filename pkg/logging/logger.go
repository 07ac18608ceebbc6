// Package logging provides the structured logger used across treesync.
// Records go through logrus; a disabled logger discards everything.
package logging

import (
	"context"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger defines the interface for logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger that adds fields to every record
	WithFields(fields Fields) Logger

	// Close flushes and closes the log file, if any
	Close() error
}

// New returns a file logger, or Nop when logging is disabled
func New(enabled bool, config FileLoggerConfig) (Logger, error) {
	if !enabled {
		return Nop(), nil
	}
	return NewFileLogger(config)
}

type nop struct{}

// Nop returns a logger that drops every record
func Nop() Logger { return nop{} }

func (nop) Debug(context.Context, string, Fields)        {}
func (nop) Info(context.Context, string, Fields)         {}
func (nop) Warn(context.Context, string, Fields)         {}
func (nop) Error(context.Context, string, error, Fields) {}
func (n nop) WithFields(Fields) Logger                   { return n }
func (nop) Close() error                                 { return nil }
