package evaluation

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

// SeqToSeqModel runs encoder-decoder models such as T5.
type SeqToSeqModel struct {
	*base
}

var _ EvalModel = (*SeqToSeqModel)(nil)

// Run encodes prompt, generates at most MaxOutputLength decoder tokens and
// decodes the whole output without special tokens.
func (m *SeqToSeqModel) Run(ctx context.Context, prompt string) (string, error) {
	return m.run(ctx, func(ctx context.Context, gen ports.Generator, tok ports.Tokenizer) (string, int, int, error) {
		input, err := tok.Encode(ctx, prompt, true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("encoding prompt: %w", err)
		}

		output, err := gen.Generate(ctx, ports.GenerateRequest{
			InputIDs:  input,
			MaxLength: m.cfg.MaxOutputLength,
		})
		if err != nil {
			return "", 0, 0, fmt.Errorf("generating: %w", err)
		}

		text, err := tok.Decode(ctx, output, true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("decoding output: %w", err)
		}
		return text, len(input), len(output), nil
	})
}
