// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend"
	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend/llamacpp"
	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend/ollama"
	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend/vllm"
	"github.com/jbctechsolutions/evalrunner/internal/application/evaluation"
	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	"github.com/jbctechsolutions/evalrunner/internal/application/tokencount"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/config"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/httpclient"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/metrics"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/tokenizer"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/tracing"
)

// Tokenizer sources for token counting.
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerBackend  = "backend"
)

// Container holds all application dependencies and provides a central
// point for dependency injection.
type Container struct {
	config  *config.Config
	verbose bool // Override log level to info when true

	logger  *logging.Logger
	tracer  *tracing.Tracer
	metrics *metrics.Metrics

	httpClient      *http.Client
	backendRegistry *backend.Registry
	modelFactory    *evaluation.Factory
}

// NewContainer creates a new dependency injection container with all services
// initialized based on the provided configuration.
func NewContainer(cfg *config.Config, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := c.initBackends(); err != nil {
		_ = c.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize backends: %w", err)
	}

	c.modelFactory = evaluation.NewFactory(evaluation.Instruments{
		Logger:  c.logger,
		Tracer:  c.tracer,
		Metrics: c.metrics,
	})

	return c, nil
}

// initObservability initializes logging, tracing and metrics.
func (c *Container) initObservability() error {
	logLevel := logging.LevelWarn
	if c.verbose {
		logLevel = logging.LevelInfo
	} else if c.config.Logging.Level != "" {
		logLevel = logging.Level(c.config.Logging.Level)
	}

	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Format = logFormat
	c.logger = logging.New(logCfg)

	if c.config.Observability.Tracing.Enabled {
		tracingCfg := tracing.Config{
			Enabled:      true,
			ExporterType: tracing.ExporterType(c.config.Observability.Tracing.ExporterType),
			OTLPEndpoint: c.config.Observability.Tracing.OTLPEndpoint,
			ServiceName:  c.config.Observability.Tracing.ServiceName,
			Environment:  "production",
			SampleRate:   c.config.Observability.Tracing.SampleRate,
		}
		tracer, err := tracing.New(context.Background(), tracingCfg)
		if err != nil {
			return fmt.Errorf("failed to create tracer: %w", err)
		}
		c.tracer = tracer
	} else {
		c.tracer = tracing.Default()
	}

	if c.config.Observability.Metrics.Enabled {
		c.metrics = metrics.New()
	}

	return nil
}

// initBackends registers every backend adapter. All adapters share one
// retrying HTTP client.
func (c *Container) initBackends() error {
	bc := c.config.Backend

	httpCfg := httpclient.DefaultConfig()
	if bc.Timeout > 0 {
		httpCfg.Timeout = bc.Timeout
	}
	httpCfg.RetryMax = bc.RetryMax
	httpCfg.Logger = c.logger.Underlying()
	c.httpClient = httpclient.New(httpCfg)

	tokenizer.UseOfflineLoader()

	c.backendRegistry = backend.NewRegistry()

	llama := llamacpp.NewBackend(
		llamacpp.WithClient(llamacpp.NewClient(
			llamacpp.WithBaseURL(bc.LlamaCpp.URL),
			llamacpp.WithHTTPClient(c.httpClient),
			llamacpp.WithRequestObserver(c.observeRequest(llamacpp.BackendName)),
		)),
		llamacpp.WithLogger(c.logger),
	)

	oll := ollama.NewBackend(
		ollama.WithClient(ollama.NewClient(
			ollama.WithBaseURL(bc.Ollama.URL),
			ollama.WithHTTPClient(c.httpClient),
			ollama.WithRequestObserver(c.observeRequest(ollama.BackendName)),
		)),
		ollama.WithLogger(c.logger),
		ollama.WithEncoding(bc.Ollama.Encoding),
		ollama.WithKeepAlive(bc.Ollama.KeepAlive),
	)

	vl := vllm.NewBackend(
		vllm.WithClient(vllm.NewClient(
			vllm.Config{Timeout: bc.Timeout},
			vllm.WithBaseURL(bc.VLLM.URL),
			vllm.WithAPIKey(bc.VLLM.APIKey),
			vllm.WithHTTPClient(c.httpClient),
			vllm.WithRequestObserver(c.observeRequest(vllm.BackendName)),
		)),
		vllm.WithLogger(c.logger),
	)

	for _, b := range []ports.BackendPort{llama, oll, vl} {
		if err := c.backendRegistry.Register(b); err != nil {
			return fmt.Errorf("failed to register backend %s: %w", b.Info().Name, err)
		}
	}

	return nil
}

// observeRequest returns a request hook that records latency for name.
func (c *Container) observeRequest(name string) func(endpoint string, d time.Duration) {
	return func(endpoint string, d time.Duration) {
		c.metrics.ObserveBackendRequest(name, endpoint, d)
		c.logger.Debug("backend request", "backend", name, "endpoint", endpoint, "duration_ms", d.Milliseconds())
	}
}

// Backend returns the named backend, or the configured default when name is empty.
func (c *Container) Backend(name string) (ports.BackendPort, error) {
	if name == "" {
		name = c.config.Backend.Default
	}
	return c.backendRegistry.GetRequired(name)
}

// SelectModel returns the EvalModel for modelName on the named backend.
// Options are applied after the model section of the configuration.
func (c *Container) SelectModel(modelName, backendName string, opts ...model.Option) (evaluation.EvalModel, error) {
	b, err := c.Backend(backendName)
	if err != nil {
		return nil, err
	}
	all := append(c.config.Model.ModelOptions(), opts...)
	return c.modelFactory.Select(modelName, b, all...)
}

// TokenCounter builds a token counter for the given tokenizer source.
// Empty arguments fall back to the tokencount section of the configuration.
// The backend source loads the configured model's tokenizer from the default backend.
func (c *Container) TokenCounter(ctx context.Context, source, encoding string) (*tokencount.Counter, error) {
	tc := c.config.TokenCount
	if source == "" {
		source = tc.Tokenizer
	}
	if encoding == "" {
		encoding = tc.Encoding
	}

	var next ports.TextTokenizer
	switch source {
	case TokenizerTiktoken:
		enc, err := tokenizer.NewEncoding(encoding)
		if err != nil {
			return nil, err
		}
		next = enc
	case TokenizerBackend:
		tok, err := c.backendTokenizer(ctx)
		if err != nil {
			return nil, err
		}
		next = ports.CountWith(tok)
	default:
		return nil, fmt.Errorf("unknown tokenizer source %q: must be one of %s, %s", source, TokenizerTiktoken, TokenizerBackend)
	}

	cached, err := tokenizer.NewCachingTokenizer(next, tc.CacheSize)
	if err != nil {
		return nil, err
	}

	return tokencount.NewCounter(cached,
		tokencount.WithLogger(c.logger),
		tokencount.WithTracer(c.tracer),
		tokencount.WithMetrics(c.metrics),
	), nil
}

func (c *Container) backendTokenizer(ctx context.Context) (ports.Tokenizer, error) {
	b, err := c.Backend("")
	if err != nil {
		return nil, err
	}

	mc := c.config.Model
	kind, err := model.ParseKind(mc.Name)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithBackend(ctx, b.Info().Name)
	return b.LoadTokenizer(ctx, ports.LoadRequest{
		ModelPath: mc.Path,
		Device:    mc.Device,
		Family:    kind,
	})
}

// Close flushes the metrics textfile and shuts down the tracer.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if path := c.config.Observability.Metrics.Textfile; path != "" && c.metrics != nil {
		if err := c.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}

	if c.tracer != nil {
		if err := c.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// BackendRegistry returns the backend registry.
func (c *Container) BackendRegistry() *backend.Registry {
	return c.backendRegistry
}

// ModelFactory returns the EvalModel factory.
func (c *Container) ModelFactory() *evaluation.Factory {
	return c.modelFactory
}

// Logger returns the structured logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the OpenTelemetry tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}
