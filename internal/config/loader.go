package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if GAZELINK_CONFIG is set
//  3. env (prefix GAZELINK_)
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("GAZELINK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: GAZELINK_ADDR, GAZELINK_BUFFER_CAPACITY, ...
	// Map env keys like GAZELINK_BUFFER_CAPACITY -> buffer_capacity.
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("GAZELINK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gazelink_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("%w: buffer_capacity must be positive", ErrInvalidConfig)
	}
	for _, s := range c.Streams {
		if _, err := sample.ParseKind(s); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// StreamKinds resolves the configured stream identifiers. Load has
// already validated them.
func (c *Config) StreamKinds() []sample.Kind {
	kinds := make([]sample.Kind, 0, len(c.Streams))
	for _, s := range c.Streams {
		if k, err := sample.ParseKind(s); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
