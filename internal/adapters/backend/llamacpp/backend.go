// Package llamacpp implements the inference backend for a llama.cpp server.
package llamacpp

import (
	"context"
	"fmt"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend"
	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
)

// BackendName is the registry name of this backend.
const BackendName = "llamacpp"

// Backend talks to a llama.cpp server. The server holds exactly one model,
// chosen when it was started; LoadModel only confirms it is ready.
type Backend struct {
	client *Client
	logger *logging.Logger
}

var _ ports.BackendPort = (*Backend)(nil)

// BackendOption configures a Backend
type BackendOption func(*Backend)

// WithClient sets the API client
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

// NewBackend creates a llama.cpp backend
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		client: NewClient(),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBackendWithURL creates a backend for the server at baseURL
func NewBackendWithURL(baseURL string) *Backend {
	return NewBackend(WithClient(NewClient(WithBaseURL(baseURL))))
}

// Info returns backend metadata
func (b *Backend) Info() ports.BackendInfo {
	return ports.BackendInfo{
		Name:        BackendName,
		Description: "llama.cpp server",
		BaseURL:     b.client.BaseURL(),
		IsLocal:     true,
	}
}

// LoadTokenizer returns a tokenizer that uses the server vocabulary
func (b *Backend) LoadTokenizer(ctx context.Context, req ports.LoadRequest) (ports.Tokenizer, error) {
	if err := b.client.Health(ctx); err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "llama.cpp server not ready", fmt.Errorf("%w: %v", domainErrors.ErrBackendUnreachable, err))
	}
	return &tokenizer{client: b.client}, nil
}

// LoadModel confirms the server is ready and returns a generator for req.Family
func (b *Backend) LoadModel(ctx context.Context, req ports.LoadRequest) (ports.Generator, error) {
	if err := b.client.Health(ctx); err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeBackend, "llama.cpp server not ready", fmt.Errorf("%w: %v", domainErrors.ErrBackendUnreachable, err))
	}
	if req.Device != "" {
		b.logger.DebugContext(ctx, "device is fixed when llama.cpp server starts; ignoring request",
			"device", req.Device,
			"model_path", req.ModelPath,
		)
	}
	return &generator{client: b.client, decoderOnly: req.Family.DecoderOnly()}, nil
}

// HealthCheck reports whether the server is ready to serve
func (b *Backend) HealthCheck(ctx context.Context) (*ports.HealthStatus, error) {
	start := time.Now()
	err := b.client.Health(ctx)
	status := &ports.HealthStatus{
		Healthy:     err == nil,
		Latency:     time.Since(start),
		LastChecked: time.Now(),
		Message:     "ok",
	}
	if err != nil {
		status.Message = err.Error()
	}
	return status, nil
}

type tokenizer struct {
	client *Client
}

func (t *tokenizer) Encode(ctx context.Context, text string, addSpecial bool) ([]int, error) {
	ids, err := t.client.Tokenize(ctx, text, addSpecial)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return ids, nil
}

func (t *tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	text, err := t.client.Detokenize(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("detokenize: %w", err)
	}
	if skipSpecial {
		text = backend.StripSpecial(text)
	}
	return text, nil
}

// EOSTokenID is unknown; llama.cpp applies its own EOS handling.
func (t *tokenizer) EOSTokenID() int {
	return -1
}

type generator struct {
	client      *Client
	decoderOnly bool
}

func (g *generator) Generate(ctx context.Context, req ports.GenerateRequest) ([]int, error) {
	budget := backend.TokenBudget(req, g.decoderOnly)
	if budget == 0 {
		return backend.AssembleOutput(req.InputIDs, nil, g.decoderOnly), nil
	}

	resp, err := g.client.Completion(ctx, &CompletionRequest{
		Prompt:       req.InputIDs,
		NPredict:     budget,
		CachePrompt:  true,
		ReturnTokens: true,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	generated := resp.Tokens
	if generated == nil && resp.Content != "" {
		// Older servers ignore return_tokens.
		generated, err = g.client.Tokenize(ctx, resp.Content, false)
		if err != nil {
			return nil, fmt.Errorf("re-tokenizing completion: %w", err)
		}
	}

	return backend.AssembleOutput(req.InputIDs, generated, g.decoderOnly), nil
}
