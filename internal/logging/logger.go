// Package logging owns the process logger shared by the relay and its
// transports.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// EnvLogLevel overrides the initial level before any configuration is applied.
const EnvLogLevel = "RELAY_LOG_LEVEL"

// Fields is the structured field set attached to a log entry.
type Fields = logrus.Fields

var (
	log  *logrus.Logger
	once sync.Once
)

func initialize() {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
		if raw := os.Getenv(EnvLogLevel); raw != "" {
			if lvl, err := parseLevel(raw); err == nil {
				log.SetLevel(lvl)
			}
		}
	})
}

// GetLogger returns the process logger, creating it on first use.
func GetLogger() *logrus.Logger {
	initialize()
	return log
}

// Configure applies a level (debug, info, warn, error) and a format (text, json).
// Empty values keep the current setting.
func Configure(level, format string) error {
	l := GetLogger()
	if strings.TrimSpace(level) != "" {
		lvl, err := parseLevel(level)
		if err != nil {
			return err
		}
		l.SetLevel(lvl)
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return oops.In("logging").With("format", format).Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects the process logger, mostly for tests.
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func parseLevel(raw string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, oops.In("logging").With("level", raw).Errorf("unknown log level %q", raw)
	}
}
