package ports

import "context"

// TextTokenizer counts tokens for plain text without special markers.
type TextTokenizer interface {
	Tokenize(ctx context.Context, text string) (int, error)
}

// TokenizerFunc adapts an ordinary function to TextTokenizer.
type TokenizerFunc func(ctx context.Context, text string) (int, error)

// Tokenize calls f(ctx, text).
func (f TokenizerFunc) Tokenize(ctx context.Context, text string) (int, error) {
	return f(ctx, text)
}

// CountWith returns a TextTokenizer backed by a model Tokenizer.
func CountWith(tok Tokenizer) TextTokenizer {
	return TokenizerFunc(func(ctx context.Context, text string) (int, error) {
		ids, err := tok.Encode(ctx, text, false)
		if err != nil {
			return 0, err
		}
		return len(ids), nil
	})
}
