package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is implemented by both *logrus.Logger and *logrus.Entry,
// so scoped loggers produced by WithField can be passed around freely.
type Logger interface {
	logrus.FieldLogger
}

func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
