package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/httpclient"
)

// Client is an HTTP client for the Ollama API
type Client struct {
	baseURL    string
	httpClient *http.Client
	observe    func(endpoint string, d time.Duration)
}

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the client
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRequestObserver registers a hook called with the latency of every request
func WithRequestObserver(fn func(endpoint string, d time.Duration)) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a new Ollama API client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpclient.New(httpclient.DefaultConfig()),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the server endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels returns all locally available models
func (c *Client) ListModels(ctx context.Context) (*TagsResponse, error) {
	var tagsResp TagsResponse
	if err := c.do(ctx, http.MethodGet, EndpointTags, nil, &tagsResp); err != nil {
		return nil, err
	}
	return &tagsResp, nil
}

// Generate performs a non-streaming text generation request
func (c *Client) Generate(ctx context.Context, genReq *GenerateRequest) (*GenerateResponse, error) {
	genReq.Stream = false

	var genResp GenerateResponse
	if err := c.do(ctx, http.MethodPost, EndpointGenerate, genReq, &genResp); err != nil {
		return nil, err
	}
	return &genResp, nil
}

// Ping checks if the Ollama server is available
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		c.observe(endpoint, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// parseError extracts error information from a failed response
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("status %d: failed to read error body", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Errorf("ollama error: %s", errResp.Error)
}
