// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options select verbosity and output format.
type Options struct {
	Debug bool
	Trace bool
	JSON  bool
	// Output defaults to stderr.
	Output io.Writer
}

// Level maps the verbosity switches to a logrus level; Trace wins over Debug.
func (o Options) Level() logrus.Level {
	switch {
	case o.Trace:
		return logrus.TraceLevel
	case o.Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// New creates a logger with full timestamps, or JSON lines when requested.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}
	logger.SetLevel(opts.Level())
	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
