package console

import "time"

// Config holds the observer session parameters.
type Config struct {
	// BaseURL is the daemon address, e.g. http://localhost:9450.
	BaseURL string

	// Duration bounds the watch session. Zero means run until the
	// context is canceled.
	Duration time.Duration

	// Timeout applies to the health check and the websocket handshake.
	Timeout time.Duration

	// LogFile receives the session log. Empty generates a timestamped
	// name.
	LogFile string

	// Verbose enables per-frame output.
	Verbose bool
}
