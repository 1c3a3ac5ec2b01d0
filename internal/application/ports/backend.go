package ports

import (
	"context"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
)

// BackendInfo contains metadata about an inference backend.
type BackendInfo struct {
	Name        string // Backend name (llamacpp, ollama, vllm)
	Description string
	BaseURL     string
	IsLocal     bool
}

// LoadRequest identifies the pretrained model a handle is loaded for.
type LoadRequest struct {
	ModelPath string
	Device    string
	Family    model.Kind
}

// GenerateRequest is the input for a single generation call.
//
// MaxLength bounds the whole returned sequence and MaxNewTokens bounds only the
// continuation; zero means unset. PadTokenID is nil unless the caller overrides it.
// It only affects padding across a batch, so the HTTP engines, which generate a
// single sequence per request, accept and ignore it.
type GenerateRequest struct {
	InputIDs     []int
	MaxLength    int
	MaxNewTokens int
	PadTokenID   *int
}

// HealthStatus for backend health checks.
type HealthStatus struct {
	Healthy     bool
	Message     string
	Latency     time.Duration
	LastChecked time.Time
}

// Tokenizer converts between text and token ids for a loaded model.
type Tokenizer interface {
	// Encode tokenizes text. addSpecial controls BOS/EOS style markers.
	Encode(ctx context.Context, text string, addSpecial bool) ([]int, error)

	// Decode turns ids back into text, optionally dropping special tokens.
	Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error)

	// EOSTokenID returns the end-of-sequence id, or -1 if unknown.
	EOSTokenID() int
}

// Generator runs generation for a loaded model.
//
// The returned slice is the first output sequence. Decoder-only families return
// the input ids followed by the continuation; seq2seq returns the decoder output.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]int, error)
}

// BackendPort is the interface for inference engines that own model weights.
type BackendPort interface {
	Info() BackendInfo
	LoadTokenizer(ctx context.Context, req LoadRequest) (Tokenizer, error)
	LoadModel(ctx context.Context, req LoadRequest) (Generator, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
