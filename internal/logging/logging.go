// ABOUTME: Logging setup shared by chime binaries
// ABOUTME: Configures logrus output, level and format
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configure logging
type Options struct {
	Level  string // logrus level name, default "info"
	File   string // append logs to this file when set
	Stdout bool   // also write to stdout
	JSON   bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logger. The returned closer releases the log file.
func Setup(opts Options) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), opts)
}

// Configure applies opts to logger
func Configure(logger *logrus.Logger, opts Options) (io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var closer io.Closer = nopCloser{}
	var writers []io.Writer

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		closer = f
		writers = append(writers, f)
	}
	if opts.Stdout {
		writers = append(writers, os.Stdout)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(os.Stderr)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return closer, nil
}
