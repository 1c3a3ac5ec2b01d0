package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

// Reserved ids of WordTokenizer.
const (
	BOSTokenID = 1
	EOSTokenID = 2
)

// WordTokenizer is a deterministic ports.Tokenizer: every whitespace-separated
// word gets the next free id on first sight. Encoding with addSpecial prepends BOS.
type WordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	words map[int]string
}

var _ ports.Tokenizer = (*WordTokenizer)(nil)

// NewWordTokenizer creates an empty WordTokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{
		ids:   make(map[string]int),
		words: make(map[int]string),
	}
}

// Encode splits text on whitespace.
func (w *WordTokenizer) Encode(_ context.Context, text string, addSpecial bool) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := []int{}
	if addSpecial {
		ids = append(ids, BOSTokenID)
	}
	for _, word := range strings.Fields(text) {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.ids) + EOSTokenID + 1
			w.ids[word] = id
			w.words[id] = word
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode joins words with single spaces. BOS and EOS render as <s> and </s>.
func (w *WordTokenizer) Decode(_ context.Context, ids []int, skipSpecial bool) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		switch id {
		case BOSTokenID:
			if !skipSpecial {
				parts = append(parts, "<s>")
			}
		case EOSTokenID:
			if !skipSpecial {
				parts = append(parts, "</s>")
			}
		default:
			parts = append(parts, w.words[id])
		}
	}
	return strings.Join(parts, " "), nil
}

// EOSTokenID returns EOSTokenID.
func (w *WordTokenizer) EOSTokenID() int {
	return EOSTokenID
}

// Tokenize counts words, for use as a ports.TextTokenizer.
func (w *WordTokenizer) Tokenize(ctx context.Context, text string) (int, error) {
	ids, err := w.Encode(ctx, text, false)
	return len(ids), err
}

// FakeBackend is an in-memory ports.BackendPort. Its generator answers every
// prompt with Reply followed by EOS, following the decoder-only output convention.
type FakeBackend struct {
	Name      string
	Reply     string
	Tokenizer *WordTokenizer

	// FailModel and FailTokenizer make that many leading loads fail with LoadErr.
	FailModel     int
	FailTokenizer int
	LoadErr       error
	HealthErr     error

	mu       sync.Mutex
	calls    []string
	loads    []ports.LoadRequest
	requests []ports.GenerateRequest
}

var _ ports.BackendPort = (*FakeBackend)(nil)

// NewFakeBackend creates a FakeBackend replying with reply.
func NewFakeBackend(reply string) *FakeBackend {
	return &FakeBackend{
		Name:      "fake",
		Reply:     reply,
		Tokenizer: NewWordTokenizer(),
	}
}

// Info returns backend metadata.
func (f *FakeBackend) Info() ports.BackendInfo {
	return ports.BackendInfo{Name: f.Name, Description: "in-memory test backend", BaseURL: "mem://", IsLocal: true}
}

// LoadTokenizer records the call and returns the shared WordTokenizer.
func (f *FakeBackend) LoadTokenizer(_ context.Context, req ports.LoadRequest) (ports.Tokenizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "tokenizer")
	f.loads = append(f.loads, req)
	if f.FailTokenizer > 0 {
		f.FailTokenizer--
		return nil, f.LoadErr
	}
	return f.Tokenizer, nil
}

// LoadModel records the call and returns a generator for req.Family.
func (f *FakeBackend) LoadModel(_ context.Context, req ports.LoadRequest) (ports.Generator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "model")
	f.loads = append(f.loads, req)
	if f.FailModel > 0 {
		f.FailModel--
		return nil, f.LoadErr
	}
	return &fakeGenerator{backend: f, decoderOnly: req.Family.DecoderOnly()}, nil
}

// HealthCheck reports HealthErr as an unhealthy status.
func (f *FakeBackend) HealthCheck(context.Context) (*ports.HealthStatus, error) {
	status := &ports.HealthStatus{Healthy: true, Message: "ok", Latency: time.Millisecond, LastChecked: time.Now()}
	if f.HealthErr != nil {
		status.Healthy = false
		status.Message = f.HealthErr.Error()
	}
	return status, nil
}

// Calls returns the handle names loaded so far, in order.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// Loads returns every LoadRequest received.
func (f *FakeBackend) Loads() []ports.LoadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.LoadRequest{}, f.loads...)
}

// Requests returns every GenerateRequest received.
func (f *FakeBackend) Requests() []ports.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.GenerateRequest{}, f.requests...)
}

type fakeGenerator struct {
	backend     *FakeBackend
	decoderOnly bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req ports.GenerateRequest) ([]int, error) {
	g.backend.mu.Lock()
	g.backend.requests = append(g.backend.requests, req)
	g.backend.mu.Unlock()

	reply, err := g.backend.Tokenizer.Encode(ctx, g.backend.Reply, false)
	if err != nil {
		return nil, err
	}
	reply = append(reply, EOSTokenID)

	if !g.decoderOnly {
		if req.MaxLength > 0 && len(reply) > req.MaxLength {
			reply = reply[:req.MaxLength]
		}
		return reply, nil
	}

	if req.MaxNewTokens > 0 && len(reply) > req.MaxNewTokens {
		reply = reply[:req.MaxNewTokens]
	}
	return append(append([]int{}, req.InputIDs...), reply...), nil
}
