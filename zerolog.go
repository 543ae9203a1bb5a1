package hashpipe

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger is a Logger which writes structured lines through zerolog.
// Printf logs at info level, Debugf at debug level.
type ZeroLogger struct {
	log zerolog.Logger
}

// NewZeroLogger returns a ZeroLogger writing JSON lines to out. When verbose
// is false, Debugf output is dropped.
func NewZeroLogger(out io.Writer, verbose bool) ZeroLogger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return ZeroLogger{log: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

// NewConsoleLogger is like NewZeroLogger, but writes human readable lines.
func NewConsoleLogger(out io.Writer, verbose bool) ZeroLogger {
	return NewZeroLogger(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}, verbose)
}

// Printf implements Logger.
func (z ZeroLogger) Printf(format string, v ...interface{}) {
	z.log.Info().Msgf(format, v...)
}

// Debugf implements Logger.
func (z ZeroLogger) Debugf(format string, v ...interface{}) {
	z.log.Debug().Msgf(format, v...)
}
