package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, message string, fields map[string]interface{})
	Info(ctx context.Context, message string, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Config configures the structured logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	ServiceName string
}

type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
	name   string
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation id to the context; every log
// line written with that context carries it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID extracts the correlation id from the context, if set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// New creates a structured logger backed by logrus.
func New(config Config) Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &structuredLogger{
		logger: l,
		fields: map[string]interface{}{},
		name:   config.ServiceName,
	}
}

func (s *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	s.entry(ctx, fields).Debug(message)
}

func (s *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	s.entry(ctx, fields).Info(message)
}

func (s *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	s.entry(ctx, fields).Warn(message)
}

func (s *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := s.entry(ctx, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

func (s *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(s.fields)+len(fields))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &structuredLogger{logger: s.logger, fields: merged, name: s.name}
}

func (s *structuredLogger) entry(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	entry := s.logger.WithField("service", s.name)
	for k, v := range s.fields {
		entry = entry.WithField(k, v)
	}
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	if cid := CorrelationID(ctx); cid != "" {
		entry = entry.WithField("correlation_id", cid)
	}
	return entry
}

// Noop returns a logger that discards everything. Used in tests.
func Noop() Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return &structuredLogger{logger: l, fields: map[string]interface{}{}}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
