// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Format names accepted by Setup
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup configures the standard logrus logger with the given level and format,
// writing to out. Returns an error for an unknown level or format.
func Setup(out io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %q (must be 'text' or 'json')", format)
	}

	logrus.SetOutput(out)
	logrus.SetLevel(lvl)
	return nil
}

// ParseLevel converts a level name to a logrus level. Empty means info.
func ParseLevel(level string) (logrus.Level, error) {
	if level == "" {
		return logrus.InfoLevel, nil
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
	return lvl, nil
}

// Component returns a log entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
