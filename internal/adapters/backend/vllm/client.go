package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/httpclient"
)

// Client handles HTTP communication with a vLLM OpenAI-compatible server.
type Client struct {
	httpClient *http.Client
	config     Config
	observe    func(path string, d time.Duration)
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for the Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the server root URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.config.BaseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	}
}

// WithAPIKey sets the bearer token sent when the server was started with --api-key.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.config.APIKey = key
	}
}

// WithRequestObserver registers a hook called with the latency of every request.
func WithRequestObserver(fn func(path string, d time.Duration)) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a new vLLM client with functional options.
func NewClient(config Config, opts ...ClientOption) *Client {
	httpCfg := httpclient.DefaultConfig()
	if config.Timeout > 0 {
		httpCfg.Timeout = config.Timeout
	}

	c := &Client{
		httpClient: httpclient.New(httpCfg),
		config:     config,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the server root URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// ListModels retrieves the models the server is serving.
func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	var result ModelsResponse
	if err := c.do(ctx, http.MethodGet, PathModels, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tokenize converts text to token ids with the served model's tokenizer.
func (c *Client) Tokenize(ctx context.Context, req *TokenizeRequest) (*TokenizeResponse, error) {
	var result TokenizeResponse
	if err := c.do(ctx, http.MethodPost, PathTokenize, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Detokenize converts token ids to text.
func (c *Client) Detokenize(ctx context.Context, req *DetokenizeRequest) (*DetokenizeResponse, error) {
	var result DetokenizeResponse
	if err := c.do(ctx, http.MethodPost, PathDetokenize, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Complete sends a non-streaming completion request.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	req.Stream = false

	var result CompletionResponse
	if err := c.do(ctx, http.MethodPost, PathCompletions, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck performs a lightweight check to verify the server answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.NewError(errors.CodeBackend, "failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return errors.NewError(errors.CodeBackend, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		c.observe(path, time.Since(start))
	}
	if err != nil {
		return errors.NewError(errors.CodeBackend, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewError(errors.CodeBackend, "failed to decode response", err)
	}
	return nil
}

// handleErrorResponse extracts error information from an error response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeBackend,
			fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode), err)
	}

	errCode := errors.CodeBackend
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errCode = errors.CodeConfiguration
	case http.StatusNotFound:
		errCode = errors.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		errCode = errors.CodeValidation
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return errors.NewError(errCode,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	errType := errResp.Error.Type
	if errType == "" {
		errType = "error"
	}

	return errors.NewError(errCode,
		fmt.Sprintf("%s: %s", errType, errResp.Error.Message), nil)
}
