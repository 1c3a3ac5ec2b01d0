package llamacpp

// DefaultBaseURL is the default llama.cpp server endpoint.
const DefaultBaseURL = "http://localhost:8080"

// API endpoints
const (
	EndpointHealth     = "/health"
	EndpointTokenize   = "/tokenize"
	EndpointDetokenize = "/detokenize"
	EndpointCompletion = "/completion"
)

// HealthResponse represents the response from GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// TokenizeRequest represents a POST /tokenize request
type TokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

// TokenizeResponse represents the response from POST /tokenize
type TokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// DetokenizeRequest represents a POST /detokenize request
type DetokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

// DetokenizeResponse represents the response from POST /detokenize
type DetokenizeResponse struct {
	Content string `json:"content"`
}

// CompletionRequest represents a POST /completion request with a token-id prompt
type CompletionRequest struct {
	Prompt       []int `json:"prompt"`
	NPredict     int   `json:"n_predict"`
	Stream       bool  `json:"stream"`
	CachePrompt  bool  `json:"cache_prompt"`
	ReturnTokens bool  `json:"return_tokens"`
}

// CompletionResponse represents the response from POST /completion
type CompletionResponse struct {
	Content         string `json:"content"`
	Tokens          []int  `json:"tokens,omitempty"`
	Stop            bool   `json:"stop"`
	StopType        string `json:"stop_type,omitempty"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
