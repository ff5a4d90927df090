package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oculab/gazelink/internal/console"
)

// Default configuration constants.
const (
	defaultDuration = 10 * time.Second
	defaultTimeout  = 5 * time.Second
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9450", "Base URL of the daemon")
		duration = flag.Duration("duration", defaultDuration, "How long to watch; 0 runs until interrupted")
		timeout  = flag.Duration("timeout", defaultTimeout, "Health check and handshake timeout")
		logFile  = flag.String("log", "", "Log file for session output (default: console_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Print every sample frame")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		console.ShowHelp()
		return
	}

	// Setup logging
	if err := console.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Cancel on SIGINT/SIGTERM so open-ended sessions can be stopped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &console.Config{
		BaseURL:  *baseURL,
		Duration: *duration,
		Timeout:  *timeout,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if _, err := console.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Console session failed: " + err.Error() + "\n")
		return
	}
}
