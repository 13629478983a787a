// Package logging configures the process-wide zerolog logger and the pgx
// query tracer that writes through it.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a logger writing to w. format is "json" or "console".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// SetGlobal installs l as the package logger and as the fallback for
// log.Ctx on contexts that carry none.
func SetGlobal(l zerolog.Logger) {
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
}

// Setup is New followed by SetGlobal.
func Setup(w io.Writer, level, format string) error {
	l, err := New(w, level, format)
	if err != nil {
		return err
	}
	SetGlobal(l)
	return nil
}

// QueryTracer returns a pgx tracer logging statements at level through the
// context logger. An empty level disables tracing and returns nil.
func QueryTracer(level string) (*tracelog.TraceLog, error) {
	if level == "" || level == "none" {
		return nil, nil
	}
	lvl, err := tracelog.LogLevelFromString(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("sql log level: %w", err)
	}
	l := zerologadapter.NewLogger(log.Logger,
		zerologadapter.WithoutPGXModule(),
		zerologadapter.WithSubDictionary("pgx"),
		zerologadapter.WithContextFunc(func(ctx context.Context, z zerolog.Context) zerolog.Context {
			if cl := zerolog.Ctx(ctx); cl != nil && cl.GetLevel() != zerolog.Disabled {
				return cl.With()
			}
			return z
		}))
	return &tracelog.TraceLog{Logger: l, LogLevel: lvl}, nil
}
