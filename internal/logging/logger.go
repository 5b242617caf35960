package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

// stdout carries command results, logs go to stderr
var defaultOutput io.Writer = os.Stderr

func defaultFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	}
}

func init() {
	logger = logrus.New()
	logger.SetOutput(defaultOutput)
	logger.SetFormatter(defaultFormatter())
	logger.SetLevel(logrus.InfoLevel)
}

func GetLogger() *logrus.Logger {
	return logger
}

// OrDefault returns l, or the package logger when l is nil.
func OrDefault(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logger
	}
	return l
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}
