// Package logging wraps logrus into the single injected logger the
// "Global mutables" design note (spec.md §9) calls for: a *Logger field on
// Server, not a package-level singleton, so tests can run multiple
// independent instances.
package logging

import (
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger, threaded through every
// component by constructor injection.
type Logger struct {
	*logrus.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error"),
// writing to out, or to stdout when out is nil. It does not open a log file.
func New(level string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if out != nil {
		l.SetOutput(out)
	} else {
		l.SetOutput(os.Stdout)
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Logger{l}
}

// NewConnectionID mints a short trace id for one connection's lifetime.
func NewConnectionID() string {
	return xid.New().String()
}

// WithConn returns a child entry carrying the connection's trace id, so
// every log line for a connection's lifetime (accept to close) can be
// grepped together.
func (l *Logger) WithConn(connID string) *logrus.Entry {
	return l.WithField("conn", connID)
}
