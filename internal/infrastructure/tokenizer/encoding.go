// Package tokenizer provides local BPE tokenization using tiktoken.
package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

var specialCandidates = []string{
	"<|endoftext|>",
	"<|fim_prefix|>",
	"<|fim_middle|>",
	"<|fim_suffix|>",
	"<|endofprompt|>",
}

var offlineOnce sync.Once

// UseOfflineLoader makes tiktoken read BPE ranks embedded in the binary
// instead of downloading them. It affects every encoding loaded afterwards.
func UseOfflineLoader() {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
}

// Encoding is a tiktoken encoding usable both as a model Tokenizer and a TextTokenizer.
type Encoding struct {
	name     string
	encoding *tiktoken.Tiktoken
	special  map[int]struct{}
	eos      int
	mu       sync.Mutex
}

var (
	_ ports.Tokenizer     = (*Encoding)(nil)
	_ ports.TextTokenizer = (*Encoding)(nil)
)

// NewEncoding loads the named encoding (e.g. cl100k_base, o200k_base).
func NewEncoding(name string) (*Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", name, err)
	}

	e := &Encoding{
		name:     name,
		encoding: enc,
		special:  make(map[int]struct{}),
		eos:      -1,
	}

	for _, s := range specialCandidates {
		ids := enc.Encode(s, []string{"all"}, nil)
		if len(ids) != 1 {
			continue
		}
		e.special[ids[0]] = struct{}{}
		if s == "<|endoftext|>" {
			e.eos = ids[0]
		}
	}

	return e, nil
}

// Name returns the encoding name.
func (e *Encoding) Name() string {
	return e.name
}

// Encode tokenizes text as ordinary text. BPE encodings carry no BOS marker,
// so addSpecial has no effect.
func (e *Encoding) Encode(_ context.Context, text string, _ bool) ([]int, error) {
	if text == "" {
		return []int{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encoding.EncodeOrdinary(text), nil
}

// Decode turns ids back into text.
func (e *Encoding) Decode(_ context.Context, ids []int, skipSpecial bool) (string, error) {
	if skipSpecial {
		filtered := make([]int, 0, len(ids))
		for _, id := range ids {
			if _, ok := e.special[id]; !ok {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encoding.Decode(ids), nil
}

// EOSTokenID returns the id of <|endoftext|>, or -1.
func (e *Encoding) EOSTokenID() int {
	return e.eos
}

// Tokenize returns the number of tokens in text.
func (e *Encoding) Tokenize(ctx context.Context, text string) (int, error) {
	ids, err := e.Encode(ctx, text, false)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
