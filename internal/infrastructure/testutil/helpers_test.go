package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := WriteJSON(t, dir, "data.json", map[string]any{"text": "hi"})

	data, err := os.ReadFile(path)
	AssertNoError(t, err)

	var got map[string]any
	AssertNoError(t, json.Unmarshal(data, &got))
	AssertEqual(t, got["text"], any("hi"))
}

func TestAssertErrorIs(t *testing.T) {
	base := errors.New("base")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", base), base)
}

func TestWordTokenizer(t *testing.T) {
	ctx := context.Background()
	tok := NewWordTokenizer()

	ids, err := tok.Encode(ctx, "the cat the", true)
	AssertNoError(t, err)
	if diff := cmp.Diff([]int{BOSTokenID, 3, 4, 3}, ids); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}

	text, err := tok.Decode(ctx, append(ids, EOSTokenID), true)
	AssertNoError(t, err)
	AssertEqual(t, text, "the cat the")

	text, err = tok.Decode(ctx, []int{BOSTokenID, 4}, false)
	AssertNoError(t, err)
	AssertEqual(t, text, "<s> cat")

	n, err := tok.Tokenize(ctx, "a b c")
	AssertNoError(t, err)
	AssertEqual(t, n, 3)
}

func TestFakeBackend_Generate(t *testing.T) {
	ctx := context.Background()
	b := NewFakeBackend("ok then")

	gen, err := b.LoadModel(ctx, ports.LoadRequest{Family: model.KindCausal})
	AssertNoError(t, err)
	out, err := gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{1, 9}, MaxNewTokens: 2})
	AssertNoError(t, err)
	AssertEqual(t, len(out), 4)

	gen, err = b.LoadModel(ctx, ports.LoadRequest{Family: model.KindSeqToSeq})
	AssertNoError(t, err)
	out, err = gen.Generate(ctx, ports.GenerateRequest{InputIDs: []int{1, 9}, MaxLength: 10})
	AssertNoError(t, err)
	AssertEqual(t, len(out), 3)

	if diff := cmp.Diff([]string{"model", "model"}, b.Calls()); diff != "" {
		t.Errorf("Calls() mismatch (-want +got):\n%s", diff)
	}
	AssertEqual(t, len(b.Requests()), 2)
}

func TestFakeBackend_FailsThenSucceeds(t *testing.T) {
	ctx := context.Background()
	b := NewFakeBackend("")
	b.FailTokenizer = 1
	b.LoadErr = errors.New("offline")

	_, err := b.LoadTokenizer(ctx, ports.LoadRequest{})
	AssertErrorIs(t, err, b.LoadErr)

	_, err = b.LoadTokenizer(ctx, ports.LoadRequest{})
	AssertNoError(t, err)
}
