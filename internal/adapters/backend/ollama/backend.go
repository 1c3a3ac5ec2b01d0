// Package ollama implements the inference backend for an Ollama server.
//
// Ollama exposes no tokenizer endpoints, so ids are produced by a local
// tiktoken encoding and converted back to text for each generate call.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend"
	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/tokenizer"
)

// BackendName is the registry name of this backend.
const BackendName = "ollama"

// DefaultKeepAlive keeps a preloaded model resident between runs.
const DefaultKeepAlive = "30m"

// Backend implements ports.BackendPort for Ollama
type Backend struct {
	client       *Client
	logger       *logging.Logger
	encodingName string
	keepAlive    string

	mu       sync.Mutex
	encoding *tokenizer.Encoding
}

var _ ports.BackendPort = (*Backend)(nil)

// BackendOption is a functional option for configuring the Backend
type BackendOption func(*Backend)

// WithClient sets a custom client for the backend
func WithClient(client *Client) BackendOption {
	return func(b *Backend) {
		b.client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithEncoding sets the tiktoken encoding used to produce token ids
func WithEncoding(name string) BackendOption {
	return func(b *Backend) {
		b.encodingName = name
	}
}

// WithKeepAlive sets how long Ollama keeps a loaded model in memory
func WithKeepAlive(d string) BackendOption {
	return func(b *Backend) {
		b.keepAlive = d
	}
}

// NewBackend creates a new Ollama backend
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		client:       NewClient(),
		logger:       logging.Default(),
		encodingName: tokenizer.DefaultEncoding,
		keepAlive:    DefaultKeepAlive,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NewBackendWithURL creates a new Ollama backend with a custom base URL
func NewBackendWithURL(baseURL string) *Backend {
	return NewBackend(WithClient(NewClient(WithBaseURL(baseURL))))
}

// Info returns backend metadata
func (b *Backend) Info() ports.BackendInfo {
	return ports.BackendInfo{
		Name:        BackendName,
		Description: "Ollama - Run large language models locally",
		BaseURL:     b.client.BaseURL(),
		IsLocal:     true,
	}
}

// LoadTokenizer returns the local encoding. It does not contact the server.
func (b *Backend) LoadTokenizer(ctx context.Context, req ports.LoadRequest) (ports.Tokenizer, error) {
	enc, err := b.loadEncoding()
	if err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "loading tokenizer", fmt.Errorf("%w: %v", domainErrors.ErrTokenizerUnavailable, err))
	}
	return enc, nil
}

// LoadModel checks that req.ModelPath has been pulled and asks Ollama to load it.
func (b *Backend) LoadModel(ctx context.Context, req ports.LoadRequest) (ports.Generator, error) {
	enc, err := b.loadEncoding()
	if err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "loading tokenizer", fmt.Errorf("%w: %v", domainErrors.ErrTokenizerUnavailable, err))
	}

	available, err := b.SupportsModel(ctx, req.ModelPath)
	if err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "ollama server not reachable", fmt.Errorf("%w: %v", domainErrors.ErrBackendUnreachable, err))
	}
	if !available {
		return nil, domainErrors.NewError(domainErrors.CodeNotFound, "model not pulled", fmt.Errorf("%w: %s", domainErrors.ErrModelNotServed, req.ModelPath))
	}

	opts := deviceOptions(req.Device)

	// An empty prompt loads the weights without generating.
	if _, err := b.client.Generate(ctx, &GenerateRequest{
		Model:     req.ModelPath,
		KeepAlive: b.keepAlive,
		Options:   opts,
	}); err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "preloading model", err)
	}

	b.logger.DebugContext(ctx, "ollama model preloaded", "model", req.ModelPath, "device", req.Device)

	return &generator{
		client:      b.client,
		encoding:    enc,
		model:       req.ModelPath,
		keepAlive:   b.keepAlive,
		options:     opts,
		decoderOnly: req.Family.DecoderOnly(),
	}, nil
}

// ListModels returns the names of all pulled models
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	tagsResp, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]string, len(tagsResp.Models))
	for i, m := range tagsResp.Models {
		models[i] = m.Name
	}
	return models, nil
}

// SupportsModel checks if a model has been pulled
func (b *Backend) SupportsModel(ctx context.Context, modelID string) (bool, error) {
	models, err := b.ListModels(ctx)
	if err != nil {
		return false, err
	}

	normalizedID := normalizeModelID(modelID)
	for _, m := range models {
		if normalizeModelID(m) == normalizedID {
			return true, nil
		}
	}
	return false, nil
}

// HealthCheck checks that the server answers
func (b *Backend) HealthCheck(ctx context.Context) (*ports.HealthStatus, error) {
	startTime := time.Now()
	err := b.client.Ping(ctx)

	status := &ports.HealthStatus{
		Healthy:     err == nil,
		Message:     "ok",
		Latency:     time.Since(startTime),
		LastChecked: time.Now(),
	}
	if err != nil {
		status.Message = err.Error()
	}
	return status, nil
}

func (b *Backend) loadEncoding() (*tokenizer.Encoding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoding != nil {
		return b.encoding, nil
	}
	enc, err := tokenizer.NewEncoding(b.encodingName)
	if err != nil {
		return nil, err
	}
	b.encoding = enc
	return enc, nil
}

// deviceOptions maps a device string to Ollama options. "cpu" disables GPU offload;
// anything else leaves placement to the server.
func deviceOptions(device string) *Options {
	if strings.EqualFold(device, "cpu") {
		zero := 0
		return &Options{NumGPU: &zero}
	}
	return nil
}

// normalizeModelID normalizes model IDs for comparison
// Ollama models can have tags like "llama2:latest" or just "llama2"
func normalizeModelID(modelID string) string {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if !strings.Contains(id, ":") {
		id += ":latest"
	}
	return id
}

type generator struct {
	client      *Client
	encoding    *tokenizer.Encoding
	model       string
	keepAlive   string
	options     *Options
	decoderOnly bool
}

func (g *generator) Generate(ctx context.Context, req ports.GenerateRequest) ([]int, error) {
	budget := backend.TokenBudget(req, g.decoderOnly)
	if budget == 0 {
		return backend.AssembleOutput(req.InputIDs, nil, g.decoderOnly), nil
	}

	prompt, err := g.encoding.Decode(ctx, req.InputIDs, false)
	if err != nil {
		return nil, fmt.Errorf("decoding prompt ids: %w", err)
	}

	opts := Options{NumPredict: budget}
	if g.options != nil {
		opts.NumGPU = g.options.NumGPU
	}

	resp, err := g.client.Generate(ctx, &GenerateRequest{
		Model:     g.model,
		Prompt:    prompt,
		Raw:       true,
		KeepAlive: g.keepAlive,
		Options:   &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	generated, err := g.encoding.Encode(ctx, resp.Response, false)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	if len(generated) > budget {
		generated = generated[:budget]
	}

	return backend.AssembleOutput(req.InputIDs, generated, g.decoderOnly), nil
}
