// Package logctx carries a zerolog logger through context.Context so that
// ingest, snapshot and fetch code log with the fields their caller set
// (source file, snapshot dir, query op) without threading a logger
// parameter everywhere.
//
//	ctx := logctx.WithLogger(ctx, logging.WithPhase("ingest"))
//	ctx = logctx.WithStr(ctx, "source", path)
//	log := logctx.FromContext(ctx)
//	log.Info().Int("values", n).Msg("source ingested")
package logctx

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the JSON-to-stderr logger used when a context
// carries none.
func DefaultLogger() zerolog.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
	return defaultLogger
}

// SetDefaultLogger replaces the fallback logger. Call it during start-up
// only; it is not synchronized with FromContext.
func SetDefaultLogger(l zerolog.Logger) {
	DefaultLogger()
	defaultLogger = l
}

// WithLogger returns a context carrying logger. A nil ctx is treated as
// context.Background().
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context logger, or DefaultLogger if there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithStr adds a string field to the context logger.
func WithStr(ctx context.Context, key, value string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Str(key, value).Logger())
}

// WithInt adds an int field to the context logger.
func WithInt(ctx context.Context, key string, value int) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Int(key, value).Logger())
}

// WithOp tags the context logger with the query or command being run.
func WithOp(ctx context.Context, op string) context.Context {
	return WithStr(ctx, "op", op)
}
