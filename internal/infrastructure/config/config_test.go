package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg == nil {
		t.Fatal("NewDefaultConfig returned nil")
	}

	if cfg.Backend.Default != DefaultBackend {
		t.Errorf("expected default backend %q, got %q", DefaultBackend, cfg.Backend.Default)
	}
	if cfg.Backend.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, cfg.Backend.Timeout)
	}
	if cfg.Backend.Ollama.URL != DefaultOllamaURL {
		t.Errorf("expected Ollama URL %q, got %q", DefaultOllamaURL, cfg.Backend.Ollama.URL)
	}

	if cfg.Model.Name != "seq_to_seq" {
		t.Errorf("expected model name seq_to_seq, got %q", cfg.Model.Name)
	}
	if cfg.Model.Path != "google/flan-t5-base" {
		t.Errorf("expected model path google/flan-t5-base, got %q", cfg.Model.Path)
	}
	if cfg.Model.MaxInputLength != 512 || cfg.Model.MaxOutputLength != 512 {
		t.Errorf("expected max lengths 512/512, got %d/%d", cfg.Model.MaxInputLength, cfg.Model.MaxOutputLength)
	}
	if cfg.Model.Device != "cuda" {
		t.Errorf("expected device cuda, got %q", cfg.Model.Device)
	}

	if cfg.TokenCount.Directory != "training_data" {
		t.Errorf("expected token count directory training_data, got %q", cfg.TokenCount.Directory)
	}

	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("expected log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("expected log format %q, got %q", DefaultLogFormat, cfg.Logging.Format)
	}
}

func TestConfig_Validate_DefaultIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}

func TestBackendConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BackendConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*BackendConfig) {}},
		{name: "ollama default", mutate: func(b *BackendConfig) { b.Default = "ollama" }},
		{name: "vllm default", mutate: func(b *BackendConfig) { b.Default = "vllm" }},
		{name: "unknown backend", mutate: func(b *BackendConfig) { b.Default = "tgi" }, wantErr: true},
		{name: "empty backend", mutate: func(b *BackendConfig) { b.Default = "" }, wantErr: true},
		{name: "negative timeout", mutate: func(b *BackendConfig) { b.Timeout = -time.Second }, wantErr: true},
		{name: "negative retries", mutate: func(b *BackendConfig) { b.RetryMax = -1 }, wantErr: true},
		{name: "empty url", mutate: func(b *BackendConfig) { b.VLLM.URL = "" }, wantErr: true},
		{name: "non-http url", mutate: func(b *BackendConfig) { b.LlamaCpp.URL = "ftp://localhost" }, wantErr: true},
		{name: "https url", mutate: func(b *BackendConfig) { b.Ollama.URL = "https://ollama.internal" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Backend
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ModelConfig
		wantErr bool
	}{
		{
			name:   "causal",
			config: ModelConfig{Name: "causal", Path: "gpt2", MaxInputLength: 10, MaxOutputLength: 5},
		},
		{
			name:   "empty path allowed",
			config: ModelConfig{Name: "llama", MaxInputLength: 10, MaxOutputLength: 5},
		},
		{
			name:    "unknown name",
			config:  ModelConfig{Name: "gpt", Path: "gpt2", MaxInputLength: 10, MaxOutputLength: 5},
			wantErr: true,
		},
		{
			name:    "zero input length",
			config:  ModelConfig{Name: "causal", Path: "gpt2", MaxOutputLength: 5},
			wantErr: true,
		},
		{
			name:    "negative output length",
			config:  ModelConfig{Name: "causal", Path: "gpt2", MaxInputLength: 10, MaxOutputLength: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelConfig_ModelOptions(t *testing.T) {
	mc := ModelConfig{Name: "causal", Path: "gpt2", Device: "cpu", MaxInputLength: 7, MaxOutputLength: 3}

	got := model.NewConfig(mc.ModelOptions()...)
	want := model.Config{ModelPath: "gpt2", Device: "cpu", MaxInputLength: 7, MaxOutputLength: 3}
	if got != want {
		t.Errorf("NewConfig(ModelOptions()) = %+v, want %+v", got, want)
	}
}

func TestTokenCountConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TokenCountConfig
		wantErr bool
	}{
		{name: "tiktoken", config: TokenCountConfig{Directory: "data", Tokenizer: "tiktoken"}},
		{name: "backend", config: TokenCountConfig{Directory: "data", Tokenizer: "backend", CacheSize: 10}},
		{name: "no directory", config: TokenCountConfig{Tokenizer: "tiktoken"}, wantErr: true},
		{name: "unknown tokenizer", config: TokenCountConfig{Directory: "data", Tokenizer: "sentencepiece"}, wantErr: true},
		{name: "negative cache", config: TokenCountConfig{Directory: "data", Tokenizer: "tiktoken", CacheSize: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{name: "valid debug level", config: LoggingConfig{Level: "debug", Format: "json"}},
		{name: "valid error level", config: LoggingConfig{Level: "error", Format: "text"}},
		{name: "empty is allowed", config: LoggingConfig{}},
		{name: "invalid level", config: LoggingConfig{Level: "trace", Format: "text"}, wantErr: true},
		{name: "invalid format", config: LoggingConfig{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TracingConfig
		wantErr bool
	}{
		{name: "disabled ignores fields", config: TracingConfig{ExporterType: "bogus"}},
		{name: "stdout", config: TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 1, ServiceName: "evalrunner"}},
		{name: "otlp without endpoint", config: TracingConfig{Enabled: true, ExporterType: "otlp", SampleRate: 1, ServiceName: "evalrunner"}, wantErr: true},
		{name: "bad sample rate", config: TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 2, ServiceName: "evalrunner"}, wantErr: true},
		{name: "missing service name", config: TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Backend.Default = "tgi"
	cfg.Model.Name = "gpt"
	cfg.TokenCount.Directory = ""
	cfg.Logging.Level = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, section := range []string{"backend:", "model:", "tokencount:", "logging:"} {
		if !strings.Contains(err.Error(), section) {
			t.Errorf("expected error to mention %q, got %v", section, err)
		}
	}
}
