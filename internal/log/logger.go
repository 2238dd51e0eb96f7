package log

import (
	"io"
	"log/slog"
)

type options struct {
	verbose bool
	json    bool
	keys    []string
}

// Option configures NewLogger.
type Option func(*options)

// WithVerbose selects debug level instead of the default warn level.
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithJSON selects the JSON handler instead of the text handler.
func WithJSON(json bool) Option {
	return func(o *options) {
		o.json = json
	}
}

// WithSensitiveKeys masks additional attribute keys, typically the names of
// custom request headers from the configuration file.
func WithSensitiveKeys(keys ...string) Option {
	return func(o *options) {
		o.keys = append(o.keys, keys...)
	}
}

// NewLogger returns a logger writing to w through a SecureHandler.
func NewLogger(w io.Writer, opts ...Option) *slog.Logger {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if o.json {
		base = slog.NewJSONHandler(w, handlerOpts)
	} else {
		base = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(base, o.keys...))
}
