package registry

import "github.com/oculab/gazelink/pkg/logger"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithDefaultCapacity sets the buffer capacity used when a subscribe
// call does not specify one.
func WithDefaultCapacity(capacity int) Option {
	return func(r *Registry) {
		if capacity > 0 {
			r.defaultCapacity = capacity
		}
	}
}

// WithLogger overrides the registry logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}
