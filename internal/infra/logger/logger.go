// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"drip_campaign_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

var environment = "development"

// Init configures the global logger from the application configuration.
// Production and staging log JSON lines; everything else logs text.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetLevel(parseLevel(cfg.LogLevel))
	Log.SetFormatter(newFormatter(cfg.Environment))
	if cfg.Environment != "" {
		environment = strings.ToLower(cfg.Environment)
	}

	Log.Debugf("Log level %s, environment %s", Log.GetLevel(), environment)
}

func parseLevel(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", raw)
		return logrus.InfoLevel
	}
	return level
}

func newFormatter(env string) logrus.Formatter {
	switch strings.ToLower(env) {
	case "production", "staging":
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}
}

// Component returns an entry tagged with the component name. Every log line
// of a subsystem goes through one of these.
func Component(name string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{"component": name, "env": environment})
}
