package evaluation

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

// CausalModel runs decoder-only models loaded through the generic causal path.
type CausalModel struct {
	*base
}

var _ EvalModel = (*CausalModel)(nil)

// Run generates up to MaxOutputLength new tokens, padding with the EOS id,
// and returns only the continuation.
func (m *CausalModel) Run(ctx context.Context, prompt string) (string, error) {
	return m.run(ctx, func(ctx context.Context, gen ports.Generator, tok ports.Tokenizer) (string, int, int, error) {
		input, err := tok.Encode(ctx, prompt, true)
		if err != nil {
			return "", 0, 0, fmt.Errorf("encoding prompt: %w", err)
		}

		req := ports.GenerateRequest{
			InputIDs:     input,
			MaxNewTokens: m.cfg.MaxOutputLength,
		}
		if eos := tok.EOSTokenID(); eos >= 0 {
			req.PadTokenID = &eos
		}

		output, err := gen.Generate(ctx, req)
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
