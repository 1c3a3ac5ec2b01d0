package evaluation

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
)

// LlamaModel runs llama-family models with the Alpaca instruction template.
// Its tokenizer is loaded before the model.
type LlamaModel struct {
	*base
}

var _ EvalModel = (*LlamaModel)(nil)

// Run wraps prompt in the instruction template and returns only the
// continuation. No pad id is passed.
func (m *LlamaModel) Run(ctx context.Context, prompt string) (string, error) {
	return m.run(ctx, func(ctx context.Context, gen ports.Generator, tok ports.Tokenizer) (string, int, int, error) {
		input, err := tok.Encode(ctx, model.FormatInstruction(prompt), true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("encoding prompt: %w", err)
		}

		output, err := gen.Generate(ctx, ports.GenerateRequest{
			InputIDs:     input,
			MaxNewTokens: m.cfg.MaxOutputLength,
		})
		if err != nil {
			return "", 0, 0, fmt.Errorf("generating: %w", err)
		}

		generated := continuation(output, len(input))
		text, err := tok.Decode(ctx, generated, true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("decoding output: %w", err)
		}
		return text, len(input), len(generated), nil
	})
}
