// Package config provides configuration structs and loading for evalrunner.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
)

// Config represents the root configuration for evalrunner.
type Config struct {
	Backend       BackendConfig       `yaml:"backend"`
	Model         ModelConfig         `yaml:"model"`
	TokenCount    TokenCountConfig    `yaml:"tokencount"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BackendConfig selects and configures the inference backends.
type BackendConfig struct {
	Default  string         `yaml:"default"` // llamacpp, ollama, vllm
	Timeout  time.Duration  `yaml:"timeout"`
	RetryMax int            `yaml:"retry_max"` // retries while the engine answers 503
	LlamaCpp EndpointConfig `yaml:"llamacpp"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	VLLM     VLLMConfig     `yaml:"vllm"`
}

// EndpointConfig holds the address of a backend server.
type EndpointConfig struct {
	URL string `yaml:"url"`
}

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	URL       string `yaml:"url"`
	KeepAlive string `yaml:"keep_alive"`
	Encoding  string `yaml:"encoding"` // tiktoken encoding used for token ids
}

// VLLMConfig holds configuration for the vLLM backend.
type VLLMConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
}

// ModelConfig holds the defaults used by test-model and check-length.
type ModelConfig struct {
	Name            string `yaml:"name"`
	Path            string `yaml:"path"`
	Device          string `yaml:"device"`
	MaxInputLength  int    `yaml:"max_input_length"`
	MaxOutputLength int    `yaml:"max_output_length"`
}

// TokenCountConfig holds configuration for count-tokens.
type TokenCountConfig struct {
	Directory string `yaml:"directory"`
	Tokenizer string `yaml:"tokenizer"` // tiktoken, backend
	Encoding  string `yaml:"encoding"`
	CacheSize int    `yaml:"cache_size"`
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ObservabilityConfig holds configuration for metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds configuration for metrics collection.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"` // written on exit when set
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Default configuration values.
const (
	DefaultBackend     = "llamacpp"
	DefaultTimeout     = 5 * time.Minute
	DefaultRetryMax    = 30
	DefaultLlamaCppURL = "http://localhost:8080"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultVLLMURL     = "http://localhost:8000"
	DefaultKeepAlive   = "30m"

	DefaultModelName = "seq_to_seq"
	DefaultModelPath = "google/flan-t5-base"

	DefaultTokenCountDir       = "training_data"
	DefaultTokenizerSource     = "tiktoken"
	DefaultEncoding            = "cl100k_base"
	DefaultTokenCacheSize      = 4096
	DefaultLogLevel            = "warn"
	DefaultLogFormat           = "text"
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "evalrunner"
)

var validBackends = map[string]bool{
	"llamacpp": true,
	"ollama":   true,
	"vllm":     true,
}

var validTokenizerSources = map[string]bool{
	"tiktoken": true,
	"backend":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Default:  DefaultBackend,
			Timeout:  DefaultTimeout,
			RetryMax: DefaultRetryMax,
			LlamaCpp: EndpointConfig{URL: DefaultLlamaCppURL},
			Ollama: OllamaConfig{
				URL:       DefaultOllamaURL,
				KeepAlive: DefaultKeepAlive,
				Encoding:  DefaultEncoding,
			},
			VLLM: VLLMConfig{URL: DefaultVLLMURL},
		},
		Model: ModelConfig{
			Name:            DefaultModelName,
			Path:            DefaultModelPath,
			Device:          model.DefaultDevice,
			MaxInputLength:  model.DefaultMaxInputLength,
			MaxOutputLength: model.DefaultMaxOutputLength,
		},
		TokenCount: TokenCountConfig{
			Directory: DefaultTokenCountDir,
			Tokenizer: DefaultTokenizerSource,
			Encoding:  DefaultEncoding,
			CacheSize: DefaultTokenCacheSize,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				ExporterType: DefaultTracingExporterType,
				SampleRate:   DefaultTracingSampleRate,
				ServiceName:  DefaultTracingServiceName,
			},
		},
	}
}

// ModelOptions returns the model.Options described by the model section.
func (m ModelConfig) ModelOptions() []model.Option {
	return []model.Option{
		model.WithModelPath(m.Path),
		model.WithDevice(m.Device),
		model.WithMaxInputLength(m.MaxInputLength),
		model.WithMaxOutputLength(m.MaxOutputLength),
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if err := c.TokenCount.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tokencount: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Observability.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: tracing: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks if the BackendConfig is valid.
func (b *BackendConfig) Validate() error {
	var errs []error

	if !validBackends[b.Default] {
		errs = append(errs, fmt.Errorf("invalid default %q: must be one of llamacpp, ollama, vllm", b.Default))
	}
	if b.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if b.RetryMax < 0 {
		errs = append(errs, errors.New("retry_max must be non-negative"))
	}

	for name, raw := range map[string]string{
		"llamacpp": b.LlamaCpp.URL,
		"ollama":   b.Ollama.URL,
		"vllm":     b.VLLM.URL,
	} {
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url must use http or https scheme")
	}
	return nil
}

// Validate checks if the ModelConfig is valid. An empty path is allowed here
// and rejected when a model is first used.
func (m *ModelConfig) Validate() error {
	var errs []error

	if _, err := model.ParseKind(m.Name); err != nil {
		errs = append(errs, fmt.Errorf("name: %w", err))
	}
	if m.MaxInputLength <= 0 {
		errs = append(errs, errors.New("max_input_length must be positive"))
	}
	if m.MaxOutputLength <= 0 {
		errs = append(errs, errors.New("max_output_length must be positive"))
	}

	return errors.Join(errs...)
}

// Validate checks if the TokenCountConfig is valid.
func (t *TokenCountConfig) Validate() error {
	var errs []error

	if t.Directory == "" {
		errs = append(errs, errors.New("directory is required"))
	}
	if !validTokenizerSources[t.Tokenizer] {
		errs = append(errs, fmt.Errorf("invalid tokenizer %q: must be one of tiktoken, backend", t.Tokenizer))
	}
	if t.CacheSize < 0 {
		errs = append(errs, errors.New("cache_size must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}
	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	return errors.Join(errs...)
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	return errors.Join(errs...)
}
