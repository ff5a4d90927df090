// Package config defines daemon configuration structures and loading.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9450".
	Addr string `koanf:"addr"`

	// TrackerAddress is the device the daemon connects to at startup.
	// Empty means connect to the first tracker found.
	TrackerAddress string `koanf:"tracker_address"`

	// Streams lists the stream identifiers to subscribe at startup.
	Streams []string `koanf:"streams"`

	// BufferCapacity bounds each stream's ring buffer.
	BufferCapacity int `koanf:"buffer_capacity"`

	// DrainIntervalMS sets how often buffered samples are drained to
	// websocket observers.
	DrainIntervalMS int `koanf:"drain_interval_ms"`

	// OccupancyIntervalMS sets how often buffer counters are pushed.
	OccupancyIntervalMS int `koanf:"occupancy_interval_ms"`

	// WSSendBuffer bounds each websocket client's outbound queue.
	WSSendBuffer int `koanf:"ws_send_buffer"`

	// SystemMetricsIntervalMS sets the host metrics sampling period.
	SystemMetricsIntervalMS int `koanf:"system_metrics_interval_ms"`

	// ShutdownTimeoutMS caps graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9450",
		TrackerAddress:          "",
		Streams:                 []string{"gaze"},
		BufferCapacity:          4096,
		DrainIntervalMS:         50,
		OccupancyIntervalMS:     1000,
		WSSendBuffer:            64,
		SystemMetricsIntervalMS: 5000,
		ShutdownTimeoutMS:       5000,
	}
}
