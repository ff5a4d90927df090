package service

import (
	registry "github.com/oculab/gazelink/internal/adapters/registry"
	calibration "github.com/oculab/gazelink/internal/domain/calibration"
	"github.com/oculab/gazelink/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRegistry injects a preconfigured stream registry.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithCalibrationController injects a preconfigured controller.
func WithCalibrationController(c *calibration.Controller) Option {
	return func(s *Service) {
		if c != nil {
			s.calib = c
		}
	}
}

// WithDefaultBufferCapacity sets the buffer capacity used when a
// subscribe call does not specify one.
func WithDefaultBufferCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.defaultBufferCapacity = capacity
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}
