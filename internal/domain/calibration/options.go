package calibration

import "github.com/oculab/gazelink/pkg/logger"

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithLogger overrides the controller logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}
