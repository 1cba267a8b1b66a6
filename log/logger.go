package log

import (
	"os"
	"path/filepath"
	"time"

	"github.com/medassure/claims-engine/conf"
	"github.com/sirupsen/logrus"
)

var (
	Engine   logrus.FieldLogger
	Coverage logrus.FieldLogger
	Metadata logrus.FieldLogger
)

func init() {
	SetupLoggers()
}

// SetupLoggers (re)builds the package loggers from the current configuration.
// Called once at init; tests call it again after changing log destinations.
func SetupLoggers() {
	env := conf.GetEnv("ENVIRONMENT")

	Engine = Logger(logrus.New(), conf.GetEnv("CLAIMS_ENGINE_LOG"), "engine", env)
	Coverage = Logger(logrus.New(), conf.GetEnv("CLAIMS_COVERAGE_LOG"), "coverage", env)
	Metadata = Logger(logrus.New(), conf.GetEnv("CLAIMS_METADATA_LOG"), "metadata", env)
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
