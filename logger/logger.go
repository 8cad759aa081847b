// Package logger holds the project-wide logrus logger.
package logger

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const projectName = "svc"

var (
	once    sync.Once
	project *logrus.Logger
)

func base() *logrus.Logger {
	once.Do(func() {
		project = logrus.New()
		project.SetOutput(os.Stderr)
		project.SetLevel(logrus.InfoLevel)
		project.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	})
	return project
}

// GetProjectLogger returns the shared logger tagged with the project name.
func GetProjectLogger() *logrus.Entry {
	return base().WithField("name", projectName)
}

// SetLevel changes the level of the shared logger, e.g. "debug" or "warn".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "parsing log level %q", level)
	}
	base().SetLevel(lvl)
	return nil
}
