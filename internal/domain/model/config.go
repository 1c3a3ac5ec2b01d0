package model

import (
	"errors"
	"fmt"

	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
)

// Default values for an evaluation model configuration.
const (
	DefaultMaxInputLength  = 512
	DefaultMaxOutputLength = 512
	DefaultDevice          = "cuda"
)

// Config is the configuration record shared by every EvalModel variant.
type Config struct {
	MaxInputLength  int    `json:"max_input_length" yaml:"max_input_length"`
	MaxOutputLength int    `json:"max_output_length" yaml:"max_output_length"`
	ModelPath       string `json:"model_path" yaml:"model_path"`
	Device          string `json:"device" yaml:"device"`
}

// Option configures a Config.
type Option func(*Config)

// WithModelPath sets the pretrained model location.
func WithModelPath(path string) Option {
	return func(c *Config) {
		c.ModelPath = path
	}
}

// WithDevice sets the device the model is placed on.
func WithDevice(device string) Option {
	return func(c *Config) {
		c.Device = device
	}
}

// WithMaxInputLength sets the input length guard used by CheckValidLength.
func WithMaxInputLength(n int) Option {
	return func(c *Config) {
		c.MaxInputLength = n
	}
}

// WithMaxOutputLength sets the generation length limit.
func WithMaxOutputLength(n int) Option {
	return func(c *Config) {
		c.MaxOutputLength = n
	}
}

// NewConfig returns a Config with defaults applied, then opts.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		MaxInputLength:  DefaultMaxInputLength,
		MaxOutputLength: DefaultMaxOutputLength,
		Device:          DefaultDevice,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks if the Config is usable.
func (c Config) Validate() error {
	var errs []error

	if c.ModelPath == "" {
		errs = append(errs, domainErrors.ErrModelPathRequired)
	}
	if c.MaxInputLength <= 0 {
		errs = append(errs, fmt.Errorf("max_input_length must be positive, got %d", c.MaxInputLength))
	}
	if c.MaxOutputLength <= 0 {
		errs = append(errs, fmt.Errorf("max_output_length must be positive, got %d", c.MaxOutputLength))
	}

	return errors.Join(errs...)
}
