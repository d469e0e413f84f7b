// Package orangelog builds the structured JSON-line logger every Orange
// component writes through: one zerolog.Logger rooted at D/orange.log with
// lumberjack rotation, and child loggers per component name.
package orangelog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the root logger.
type Options struct {
	// Path is the log file, typically D/orange.log. Empty means stderr
	// only (used by tests and one-shot CLI invocations that shouldn't
	// leave a log file behind).
	Path string
	// Level is one of error/warn/info/debug.
	Level string
	// AlsoStderr mirrors log lines to stderr in addition to the file,
	// for interactive CLI runs.
	AlsoStderr bool
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the root logger. Rotation is 10 MiB per file, 3 backups kept,
// matching the spec's fixed rotation policy.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer
	if opts.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    10, // MiB
			MaxBackups: 3,
			Compress:   false,
		})
	}
	if opts.AlsoStderr || opts.Path == "" {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	return zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name,
// the field `orange log --component C` filters on.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
