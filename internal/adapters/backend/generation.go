package backend

import "github.com/jbctechsolutions/evalrunner/internal/application/ports"

// DefaultMaxLength applies when a request sets neither MaxLength nor MaxNewTokens.
const DefaultMaxLength = 20

// TokenBudget returns how many new tokens req allows. For decoder-only
// families MaxLength includes the prompt; for seq2seq it bounds the decoder output.
func TokenBudget(req ports.GenerateRequest, decoderOnly bool) int {
	if req.MaxNewTokens > 0 {
		return req.MaxNewTokens
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if decoderOnly {
		return max(maxLength-len(req.InputIDs), 0)
	}
	return maxLength
}

// AssembleOutput builds the first output sequence from the generated ids.
func AssembleOutput(input, generated []int, decoderOnly bool) []int {
	if !decoderOnly {
		return append([]int{}, generated...)
	}
	out := make([]int, 0, len(input)+len(generated))
	out = append(out, input...)
	return append(out, generated...)
}
