package vllm

import "time"

// API paths, relative to the server root.
const (
	PathModels      = "/v1/models"
	PathCompletions = "/v1/completions"
	PathTokenize    = "/tokenize"
	PathDetokenize  = "/detokenize"
)

// TokenizeRequest is the body of POST /tokenize.
type TokenizeRequest struct {
	Model            string `json:"model"`
	Prompt           string `json:"prompt"`
	AddSpecialTokens bool   `json:"add_special_tokens"`
}

// TokenizeResponse is the response from POST /tokenize.
type TokenizeResponse struct {
	Count       int   `json:"count"`
	MaxModelLen int   `json:"max_model_len"`
	Tokens      []int `json:"tokens"`
}

// DetokenizeRequest is the body of POST /detokenize.
type DetokenizeRequest struct {
	Model  string `json:"model"`
	Tokens []int  `json:"tokens"`
}

// DetokenizeResponse is the response from POST /detokenize.
type DetokenizeResponse struct {
	Prompt string `json:"prompt"`
}

// CompletionRequest is an OpenAI-style completion with a token-id prompt.
type CompletionRequest struct {
	Model             string  `json:"model"`
	Prompt            []int   `json:"prompt"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float32 `json:"temperature"`
	Stream            bool    `json:"stream"`
	SkipSpecialTokens bool    `json:"skip_special_tokens"`
}

// CompletionResponse is the response from the completions endpoint.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// Usage reports token counts for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an error from the server.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo contains detailed error information.
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// ModelsResponse is the response from the models list endpoint.
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model represents a served model.
type Model struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Created     int64  `json:"created"`
	OwnedBy     string `json:"owned_by"`
	Root        string `json:"root,omitempty"`
	MaxModelLen int    `json:"max_model_len,omitempty"`
}

// Config contains configuration for the vLLM client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 5 * time.Minute,
	}
}
