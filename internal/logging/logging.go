// internal/logging/logging.go
// Package logging configures the leveled loggers of github.com/womat/debug
// from the application settings.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/womat/debug"
)

// ErrUnknownLevel indicates the log level is not one of standard, debug or trace
var ErrUnknownLevel = errors.New("unknown log level")

// Flag returns the debug flags enabled by level.
func Flag(level string) (int, error) {
	switch level {
	case "trace", "full":
		return debug.Full, nil
	case "debug":
		return debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug, nil
	case "standard", "":
		return debug.Standard, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
}

// Setup routes the loggers to file at level. file is "stderr", "stdout" or
// a path opened for appending. The returned closer releases the file.
func Setup(level, file string) (io.Closer, error) {
	flag, err := Flag(level)
	if err != nil {
		return nil, err
	}

	var w *os.File
	switch file {
	case "stderr", "":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		if w, err = os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		debug.SetDebug(w, flag)
		return w, nil
	}

	debug.SetDebug(w, flag)
	return nopCloser{}, nil
}

// nopCloser keeps the standard streams open.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }
