package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger  *logrus.Logger
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

// Setup initializes the pipeline logger. Output always goes to the terminal;
// when logFilePath is non-empty the same entries are appended to that file.
func Setup(logFilePath string, debug bool) (*logrus.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	// Check if logger is already set up
	if isSetup {
		return logger, nil
	}

	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if logFilePath != "" {
		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %v", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, logFile))
		logger.Info("pipeline log started")
	}

	isSetup = true
	return logger, nil
}

// Close closes the log file if one was opened by Setup.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
		isSetup = false
	}
}

// ForStage returns an entry tagged with the stage name. Stages receive this
// entry at construction time instead of reaching for a package-level logger.
func ForStage(log *logrus.Logger, stageName string) *logrus.Entry {
	return log.WithField("stage", stageName)
}
