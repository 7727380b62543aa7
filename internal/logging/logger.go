package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. With console enabled the output is wrapped in
// zerolog's human-readable console writer, otherwise structured JSON is
// written directly to out. Unknown level strings fall back to info.
func New(level string, console bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Component derives a child logger tagged with a component name so every
// line can be traced back to the subsystem that wrote it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything. Used by tests and by
// constructors whose caller did not supply a logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
