// Package telemetry provides the structured logger shared by the lio and
// spatial packages.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logger the lio and spatial packages write to. Neither
// package accepts a logger of its own; lio.Config has no logger field.
var Logger = New("info", "stdout")

// New builds a JSON-formatted logrus logger at the given level, writing to
// stdout or to the named file.
func New(level, output string) *logrus.Logger {
	logger := logrus.New()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if output == "stdout" || output == "" {
		logger.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logger.SetOutput(file)
		} else {
			logger.SetOutput(os.Stdout)
			logger.Warnf("failed to open log file %s, using stdout", output)
		}
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	return logger
}
