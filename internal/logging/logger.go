package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const loggerKey contextKey = "logger"

// New builds a logger writing to stdout. Format is "json" or "text".
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stdout, level, format)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return logger, nil
}

// WithLogger stores entry on the context.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, entry)
}

// FromContext returns the entry stored on ctx or one derived from the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerKey).(*logrus.Entry); ok && entry != nil {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func LogError(logger logrus.FieldLogger, msg string, err error) {
	logger.WithError(err).Error(msg)
}

func LogFatal(logger logrus.FieldLogger, msg string, err error) {
	logger.WithError(err).Fatal(msg)
}
