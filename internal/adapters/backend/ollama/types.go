package ollama

import "time"

// DefaultBaseURL is the default Ollama API endpoint
const DefaultBaseURL = "http://localhost:11434"

// API endpoints
const (
	EndpointTags     = "/api/tags"
	EndpointGenerate = "/api/generate"
)

// TagsResponse represents the response from GET /api/tags
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo contains information about a model
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	Details    Details   `json:"details"`
}

// Details contains model details
type Details struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// Options for model configuration
type Options struct {
	NumPredict int  `json:"num_predict,omitempty"`
	NumGPU     *int `json:"num_gpu,omitempty"`
}

// GenerateRequest represents a text generation request. Raw prompts bypass
// the model's chat template.
type GenerateRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Raw       bool     `json:"raw,omitempty"`
	Stream    bool     `json:"stream"`
	KeepAlive string   `json:"keep_alive,omitempty"`
	Options   *Options `json:"options,omitempty"`
}

// GenerateResponse represents a text generation response
type GenerateResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Response        string    `json:"response"`
	Done            bool      `json:"done"`
	DoneReason      string    `json:"done_reason,omitempty"`
	TotalDuration   int64     `json:"total_duration,omitempty"`
	LoadDuration    int64     `json:"load_duration,omitempty"`
	PromptEvalCount int       `json:"prompt_eval_count,omitempty"`
	EvalCount       int       `json:"eval_count,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error string `json:"error"`
}
