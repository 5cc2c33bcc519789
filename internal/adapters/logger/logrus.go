package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey string

// RequestIDKey is the context key under which HTTP middleware stores the request id.
const RequestIDKey ctxKey = "request_id"

// LogrusLogger implements the ports.Logger interface on top of logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// ParseLevel converts a level name to a logrus level, defaulting to Info.
func ParseLevel(levelStr string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// New creates a logger writing to os.Stderr with the given level and format ("text" or "json").
func New(level logrus.Level, format string) *LogrusLogger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, level logrus.Level, format string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// WithComponent returns a logger that tags every line with component=name.
func (l *LogrusLogger) WithComponent(name string) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithField("component", name)}
}

func (l *LogrusLogger) withFields(ctx context.Context, fields []map[string]interface{}) *logrus.Entry {
	e := l.entry
	if ctx != nil {
		if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
			e = e.WithField("request_id", id)
		}
	}
	if len(fields) > 0 && fields[0] != nil {
		e = e.WithFields(logrus.Fields(fields[0]))
	}
	return e
}

// Debug logs a message at Debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(ctx, fields).Debug(msg)
}

// Info logs a message at Info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(ctx, fields).Info(msg)
}

// Warn logs a message at Warning level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(ctx, fields).Warn(msg)
}

// Error logs an error message at Error level.
func (l *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	e := l.withFields(ctx, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
