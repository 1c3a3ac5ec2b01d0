package llamacpp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
)

// fakeServer emulates the subset of the llama.cpp server API used by the backend.
type fakeServer struct {
	t           *testing.T
	healthy     bool
	completion  CompletionResponse
	lastRequest CompletionRequest
	vocab       map[string][]int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case EndpointHealth:
		if !f.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"Loading model","type":"unavailable_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})

	case EndpointTokenize:
		var req TokenizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decoding tokenize request: %v", err)
		}
		ids := append([]int{}, f.vocab[req.Content]...)
		if req.AddSpecial {
			ids = append([]int{1}, ids...)
		}
		_ = json.NewEncoder(w).Encode(TokenizeResponse{Tokens: ids})

	case EndpointDetokenize:
		var req DetokenizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decoding detokenize request: %v", err)
		}
		var content string
		for _, id := range req.Tokens {
			if id == 1 {
				content += "<s>"
				continue
			}
			for text, ids := range f.vocab {
				if len(ids) == 1 && ids[0] == id {
					content += text
				}
			}
		}
		_ = json.NewEncoder(w).Encode(DetokenizeResponse{Content: content})

	case EndpointCompletion:
		if err := json.NewDecoder(r.Body).Decode(&f.lastRequest); err != nil {
			f.t.Errorf("decoding completion request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(f.completion)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestBackend(t *testing.T, f *fakeServer) *Backend {
	t.Helper()
	f.t = t
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	return NewBackend(WithClient(client), WithLogger(logging.Discard()))
}

func TestBackend_Info(t *testing.T) {
	b := NewBackend()
	info := b.Info()

	if info.Name != BackendName {
		t.Errorf("expected name %q, got %q", BackendName, info.Name)
	}
	if !info.IsLocal {
		t.Error("expected IsLocal to be true")
	}
	if info.BaseURL != DefaultBaseURL {
		t.Errorf("expected base URL %q, got %q", DefaultBaseURL, info.BaseURL)
	}
}

func TestNewBackendWithURL_TrimsSlash(t *testing.T) {
	b := NewBackendWithURL("http://gpu-box:9000/")
	if got := b.Info().BaseURL; got != "http://gpu-box:9000" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", got)
	}
}

func TestBackend_LoadTokenizer_Unhealthy(t *testing.T) {
	b := newTestBackend(t, &fakeServer{healthy: false})

	_, err := b.LoadTokenizer(context.Background(), ports.LoadRequest{ModelPath: "m"})
	if err == nil {
		t.Fatal("expected error for unhealthy server")
	}
	if !errors.Is(err, domainErrors.ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable, got %v", err)
	}
	if domainErrors.CodeOf(err) != domainErrors.CodeBackend {
		t.Errorf("expected code %s, got %s", domainErrors.CodeBackend, domainErrors.CodeOf(err))
	}
}

func TestBackend_LoadModel_Unhealthy(t *testing.T) {
	b := newTestBackend(t, &fakeServer{healthy: false})

	_, err := b.LoadModel(context.Background(), ports.LoadRequest{ModelPath: "m", Family: model.KindCausal})
	if !errors.Is(err, domainErrors.ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestTokenizer_EncodeDecode(t *testing.T) {
	f := &fakeServer{
		healthy: true,
		vocab:   map[string][]int{"hi": {42}, "hello there": {7, 8}},
	}
	b := newTestBackend(t, f)
	ctx := context.Background()

	tok, err := b.LoadTokenizer(ctx, ports.LoadRequest{ModelPath: "m"})
	if err != nil {
		t.Fatalf("LoadTokenizer() unexpected error: %v", err)
	}

	ids, err := tok.Encode(ctx, "hello there", true)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{1, 7, 8}, ids); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}

	ids, err = tok.Encode(ctx, "hello there", false)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 ids without special tokens, got %v", ids)
	}

	text, err := tok.Decode(ctx, []int{1, 42}, true)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if text != "hi" {
		t.Errorf("Decode(skipSpecial) = %q, want %q", text, "hi")
	}

	text, err = tok.Decode(ctx, []int{1, 42}, false)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if text != "<s>hi" {
		t.Errorf("Decode() = %q, want %q", text, "<s>hi")
	}

	if tok.EOSTokenID() != -1 {
		t.Errorf("EOSTokenID() = %d, want -1", tok.EOSTokenID())
	}
}

func TestTokenizer_DecodeEmpty(t *testing.T) {
	b := newTestBackend(t, &fakeServer{healthy: true})
	ctx := context.Background()

	tok, err := b.LoadTokenizer(ctx, ports.LoadRequest{})
	if err != nil {
		t.Fatalf("LoadTokenizer() unexpected error: %v", err)
	}
	text, err := tok.Decode(ctx, nil, true)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("Decode(nil) = %q, want empty", text)
	}
}

func TestGenerator_DecoderOnly(t *testing.T) {
	f := &fakeServer{
		healthy:    true,
		completion: CompletionResponse{Content: "yes", Tokens: []int{9, 10}},
	}
	b := newTestBackend(t, f)
	ctx := context.Background()

	gen, err := b.LoadModel(ctx, ports.LoadRequest{ModelPath: "m", Family: model.KindCausal})
	if err != nil {
		t.Fatalf("LoadModel() unexpected error: %v", err)
	}

	out, err := gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{1, 2, 3}, MaxNewTokens: 512})
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}

	if diff := cmp.Diff([]int{1, 2, 3, 9, 10}, out); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
	if f.lastRequest.NPredict != 512 {
		t.Errorf("n_predict = %d, want 512", f.lastRequest.NPredict)
	}
	if !f.lastRequest.ReturnTokens {
		t.Error("expected return_tokens to be requested")
	}
	if f.lastRequest.Stream {
		t.Error("expected non-streaming completion")
	}
}

func TestGenerator_IgnoresPadTokenID(t *testing.T) {
	f := &fakeServer{healthy: true, completion: CompletionResponse{Tokens: []int{9}}}
	b := newTestBackend(t, f)
	ctx := context.Background()

	gen, err := b.LoadModel(ctx, ports.LoadRequest{ModelPath: "m", Family: model.KindCausal})
	if err != nil {
		t.Fatalf("LoadModel() unexpected error: %v", err)
	}

	req := ports.GenerateRequest{InputIDs: []int{1, 2}, MaxNewTokens: 4}
	plain, err := gen.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	plainReq := f.lastRequest

	pad := 2
	req.PadTokenID = &pad
	padded, err := gen.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}

	if diff := cmp.Diff(plain, padded); diff != "" {
		t.Errorf("output changed with pad id (-without +with):\n%s", diff)
	}
	if diff := cmp.Diff(plainReq, f.lastRequest); diff != "" {
		t.Errorf("completion request changed with pad id (-without +with):\n%s", diff)
	}
}

func TestGenerator_SeqToSeq(t *testing.T) {
	f := &fakeServer{
		healthy:    true,
		completion: CompletionResponse{Tokens: []int{5, 6}},
	}
	b := newTestBackend(t, f)
	ctx := context.Background()

	gen, err := b.LoadModel(ctx, ports.LoadRequest{ModelPath: "t5", Family: model.KindSeqToSeq, Device: "cuda"})
	if err != nil {
		t.Fatalf("LoadModel() unexpected error: %v", err)
	}

	out, err := gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{1, 2}, MaxLength: 64})
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{5, 6}, out); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
	if f.lastRequest.NPredict != 64 {
		t.Errorf("n_predict = %d, want 64", f.lastRequest.NPredict)
	}
}

func TestGenerator_RetokenizesWithoutTokens(t *testing.T) {
	f := &fakeServer{
		healthy:    true,
		completion: CompletionResponse{Content: "ok"},
		vocab:      map[string][]int{"ok": {77}},
	}
	b := newTestBackend(t, f)
	ctx := context.Background()

	gen, err := b.LoadModel(ctx, ports.LoadRequest{Family: model.KindLlama})
	if err != nil {
		t.Fatalf("LoadModel() unexpected error: %v", err)
	}
	out, err := gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{3}, MaxNewTokens: 4})
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{3, 77}, out); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_ZeroBudgetSkipsServer(t *testing.T) {
	f := &fakeServer{healthy: true, completion: CompletionResponse{Tokens: []int{99}}}
	b := newTestBackend(t, f)
	ctx := context.Background()

	gen, err := b.LoadModel(ctx, ports.LoadRequest{Family: model.KindCausal})
	if err != nil {
		t.Fatalf("LoadModel() unexpected error: %v", err)
	}
	out, err := gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{1, 2, 3}, MaxLength: 2})
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, out); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
	if f.lastRequest.NPredict != 0 {
		t.Error("expected no completion request for an exhausted budget")
	}
}

func TestBackend_HealthCheck(t *testing.T) {
	b := newTestBackend(t, &fakeServer{healthy: true})
	status, err := b.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() unexpected error: %v", err)
	}
	if !status.Healthy {
		t.Errorf("expected healthy, got message %q", status.Message)
	}

	b = newTestBackend(t, &fakeServer{healthy: false})
	status, err = b.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() unexpected error: %v", err)
	}
	if status.Healthy {
		t.Error("expected unhealthy status")
	}
	if status.Message == "" {
		t.Error("expected message describing the failure")
	}
}

func TestClient_RequestObserver(t *testing.T) {
	f := &fakeServer{healthy: true, t: t}
	server := httptest.NewServer(f)
	defer server.Close()

	var endpoints []string
	client := NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithRequestObserver(func(endpoint string, d time.Duration) {
			endpoints = append(endpoints, endpoint)
		}),
	)

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{EndpointHealth}, endpoints); diff != "" {
		t.Errorf("observed endpoints mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"tokens out of range","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Completion(context.Background(), &CompletionRequest{Prompt: []int{1}})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "llama.cpp server error (status 400): tokens out of range" {
		t.Errorf("unexpected error message: %s", got)
	}
}
