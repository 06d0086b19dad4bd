package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is one of the six verbosities the CLI's -v/--verbosity flag
// accepts.
type Level string

const (
	Off   Level = "off"
	Error Level = "error"
	Warn  Level = "warn"
	Info  Level = "info"
	Debug Level = "debug"
	Trace Level = "trace"
)

// ParseLevel validates s against the six accepted spellings.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case Off, Error, Warn, Info, Debug, Trace:
		return Level(s), nil
	default:
		return "", fmt.Errorf("invalid verbosity %q: want one of off|error|warn|info|debug|trace", s)
	}
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case Off:
		return zerolog.Disabled
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	case Info:
		return zerolog.InfoLevel
	case Debug:
		return zerolog.DebugLevel
	case Trace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a console-writer logger at the given level, timestamped,
// writing to stderr so stdout stays free for any future scripted
// output.
func New(level Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level.zerologLevel()).With().Timestamp().Logger()
}
