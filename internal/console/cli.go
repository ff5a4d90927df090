package console

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/oculab/gazelink/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "console_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the tracker console.
func ShowHelp() {
	os.Stdout.WriteString(`Gazelink Tracker Console
========================

Attaches to a running gazelink daemon and follows the telemetry it
pushes over /ws.

Usage:
  go run cmd/tracker-console/main.go [options]

Options:
  -url string
        Base URL of the daemon (default "http://localhost:9450")
  -duration duration
        How long to watch; 0 runs until interrupted (default 10s)
  -timeout duration
        Health check and handshake timeout (default 5s)
  -log string
        Log file for session output (default: console_log_TIMESTAMP.log)
  -verbose
        Print every sample frame
  -help
        Show this help message

Examples:
  # Watch the default daemon for ten seconds
  go run cmd/tracker-console/main.go

  # Follow a remote daemon until interrupted
  go run cmd/tracker-console/main.go -url http://10.0.0.7:9450 -duration 0

  # Print every frame
  go run cmd/tracker-console/main.go -verbose
`)
}
