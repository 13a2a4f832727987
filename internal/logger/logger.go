package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	// Progress goes to stderr so results on stdout stay clean
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(levelFromEnv())
	Logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
}

// levelFromEnv reads LOG_LEVEL, defaulting to info.
func levelFromEnv() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Configure sets the level and format. verbose forces debug output;
// otherwise LOG_LEVEL applies. format is "text" or "json".
func Configure(verbose bool, format string, out io.Writer) error {
	if out != nil {
		Logger.SetOutput(out)
	}

	if verbose {
		Logger.SetLevel(logrus.DebugLevel)
	} else {
		Logger.SetLevel(levelFromEnv())
	}

	switch format {
	case "", "text":
		Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
