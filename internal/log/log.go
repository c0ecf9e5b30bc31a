// Package log provides the context-scoped logger shared by every core
// component, retrieving a *zerolog.Logger from a context instead of a
// package-global.
package log

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// New builds a logger writing structured JSON to w.
func New(w *os.File) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// With returns a context carrying lg, retrievable with Get.
func With(ctx context.Context, lg zerolog.Logger) context.Context {
	return lg.WithContext(ctx)
}

// Get returns the logger attached to ctx, or a disabled logger if none was
// attached.
func Get(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
