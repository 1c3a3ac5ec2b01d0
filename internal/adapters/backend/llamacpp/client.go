package llamacpp

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

// Client is an HTTP client for the llama.cpp server API
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

// NewClient creates a new llama.cpp server client
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

// Health checks whether the server has finished loading its model
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.do(ctx, http.MethodGet, EndpointHealth, nil, &resp)
}

// Tokenize converts text to token ids
func (c *Client) Tokenize(ctx context.Context, content string, addSpecial bool) ([]int, error) {
	var resp TokenizeResponse
	if err := c.do(ctx, http.MethodPost, EndpointTokenize, TokenizeRequest{Content: content, AddSpecial: addSpecial}, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens == nil {
		return []int{}, nil
	}
	return resp.Tokens, nil
}

// Detokenize converts token ids to text
func (c *Client) Detokenize(ctx context.Context, tokens []int) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}
	var resp DetokenizeResponse
	if err := c.do(ctx, http.MethodPost, EndpointDetokenize, DetokenizeRequest{Tokens: tokens}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Completion performs a non-streaming completion
func (c *Client) Completion(ctx context.Context, compReq *CompletionRequest) (*CompletionResponse, error) {
	compReq.Stream = false

	var resp CompletionResponse
	if err := c.do(ctx, http.MethodPost, EndpointCompletion, compReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
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

// parseError extracts an error message from a non-200 response
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("llama.cpp server returned status %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("llama.cpp server error (status %d): %s", resp.StatusCode, errResp.Error.Message)
	}

	return fmt.Errorf("llama.cpp server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
