package buffer

// settings holds construction-time configuration. Options cannot be
// generic over the element type, so they target this struct instead of
// the Buffer itself.
type settings struct {
	capacity int
	stream   string
}

// Option applies a configuration option to a new Buffer.
type Option func(*settings)

// WithCapacity sets the maximum number of buffered elements.
func WithCapacity(capacity int) Option {
	return func(s *settings) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithStreamLabel attaches a stream name used to label buffer metrics.
// Without it the buffer stays out of the metrics registry.
func WithStreamLabel(stream string) Option {
	return func(s *settings) {
		if stream != "" {
			s.stream = stream
		}
	}
}
