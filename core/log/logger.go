package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
}

// Init configures the process-wide logger. Pretty output is meant for local development.
func Init(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	SetOutput(w, lvl)
	return nil
}

// SetOutput swaps the writer and level of the process-wide logger
func SetOutput(w io.Writer, level zerolog.Level) {
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Logger returns the process-wide logger
func Logger() *zerolog.Logger {
	return &logger
}

// Ctx returns the logger attached to ctx, falling back to the process-wide logger
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithRequestID returns a context whose logger tags every line with request_id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := Ctx(ctx).With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

func Info(format string, args ...any) {
	logger.Info().Msgf(format, args...)
}

func Debug(format string, args ...any) {
	logger.Debug().Msgf(format, args...)
}

func Warn(format string, args ...any) {
	logger.Warn().Msgf(format, args...)
}

func Error(format string, args ...any) {
	logger.Error().Msgf(format, args...)
}
