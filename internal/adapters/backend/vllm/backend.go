// Package vllm implements the inference backend for a vLLM OpenAI-compatible server.
package vllm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend"
	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
)

// BackendName is the registry name of this backend.
const BackendName = "vllm"

// Backend implements ports.BackendPort for vLLM.
type Backend struct {
	client *Client
	logger *logging.Logger
}

var _ ports.BackendPort = (*Backend)(nil)

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClient sets the API client.
func WithClient(client *Client) BackendOption {
	return func(b *Backend) {
		b.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewBackend creates a vLLM backend.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		client: NewClient(DefaultConfig()),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBackendWithURL creates a backend for the server at baseURL.
func NewBackendWithURL(baseURL string) *Backend {
	return NewBackend(WithClient(NewClient(DefaultConfig(), WithBaseURL(baseURL))))
}

// Info returns backend metadata.
func (b *Backend) Info() ports.BackendInfo {
	return ports.BackendInfo{
		Name:        BackendName,
		Description: "vLLM OpenAI-compatible server",
		BaseURL:     b.client.BaseURL(),
		IsLocal:     strings.Contains(b.client.BaseURL(), "localhost") || strings.Contains(b.client.BaseURL(), "127.0.0.1"),
	}
}

// LoadTokenizer returns a tokenizer backed by the served model's vocabulary.
func (b *Backend) LoadTokenizer(ctx context.Context, req ports.LoadRequest) (ports.Tokenizer, error) {
	if err := b.ensureServed(ctx, req.ModelPath); err != nil {
		return nil, err
	}
	return &tokenizer{client: b.client, model: req.ModelPath}, nil
}

// LoadModel verifies the server is serving req.ModelPath.
func (b *Backend) LoadModel(ctx context.Context, req ports.LoadRequest) (ports.Generator, error) {
	if err := b.ensureServed(ctx, req.ModelPath); err != nil {
		return nil, err
	}
	if req.Device != "" {
		b.logger.DebugContext(ctx, "device is fixed when vLLM starts; ignoring request",
			"device", req.Device,
			"model_path", req.ModelPath,
		)
	}
	return &generator{client: b.client, model: req.ModelPath, decoderOnly: req.Family.DecoderOnly()}, nil
}

// HealthCheck reports whether the server answers the models endpoint.
func (b *Backend) HealthCheck(ctx context.Context) (*ports.HealthStatus, error) {
	start := time.Now()
	err := b.client.HealthCheck(ctx)
	status := &ports.HealthStatus{
		Healthy:     err == nil,
		Message:     "ok",
		Latency:     time.Since(start),
		LastChecked: time.Now(),
	}
	if err != nil {
		status.Message = err.Error()
	}
	return status, nil
}

func (b *Backend) ensureServed(ctx context.Context, modelPath string) error {
	models, err := b.client.ListModels(ctx)
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeBackend, "vLLM server not reachable", fmt.Errorf("%w: %v", domainErrors.ErrBackendUnreachable, err))
	}

	served := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		if m.ID == modelPath || m.Root == modelPath {
			return nil
		}
		served = append(served, m.ID)
	}

	notServed := domainErrors.NewError(domainErrors.CodeNotFound, "model not served", fmt.Errorf("%w: %s", domainErrors.ErrModelNotServed, modelPath))
	return domainErrors.WithContext(notServed, "served", served)
}

type tokenizer struct {
	client *Client
	model  string
}

func (t *tokenizer) Encode(ctx context.Context, text string, addSpecial bool) ([]int, error) {
	resp, err := t.client.Tokenize(ctx, &TokenizeRequest{
		Model:            t.model,
		Prompt:           text,
		AddSpecialTokens: addSpecial,
	})
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	if resp.Tokens == nil {
		return []int{}, nil
	}
	return resp.Tokens, nil
}

func (t *tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	resp, err := t.client.Detokenize(ctx, &DetokenizeRequest{Model: t.model, Tokens: ids})
	if err != nil {
		return "", fmt.Errorf("detokenize: %w", err)
	}
	if skipSpecial {
		return backend.StripSpecial(resp.Prompt), nil
	}
	return resp.Prompt, nil
}

// EOSTokenID is unknown; vLLM stops on the model's EOS itself.
func (t *tokenizer) EOSTokenID() int {
	return -1
}

type generator struct {
	client      *Client
	model       string
	decoderOnly bool
}

func (g *generator) Generate(ctx context.Context, req ports.GenerateRequest) ([]int, error) {
	budget := backend.TokenBudget(req, g.decoderOnly)
	if budget == 0 {
		return backend.AssembleOutput(req.InputIDs, nil, g.decoderOnly), nil
	}

	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:             g.model,
		Prompt:            req.InputIDs,
		MaxTokens:         budget,
		SkipSpecialTokens: false,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "completion returned no choices", nil)
	}

	tok, err := g.client.Tokenize(ctx, &TokenizeRequest{Model: g.model, Prompt: resp.Choices[0].Text})
	if err != nil {
		return nil, fmt.Errorf("re-tokenizing completion: %w", err)
	}

	return backend.AssembleOutput(req.InputIDs, tok.Tokens, g.decoderOnly), nil
}
