// Package model contains domain types describing evaluation models.
package model

import (
	"fmt"

	"github.com/jbctechsolutions/evalrunner/internal/domain/errors"
)

// Kind identifies a model family and selects the EvalModel variant used for it.
type Kind string

const (
	KindSeqToSeq Kind = "seq_to_seq"
	KindCausal   Kind = "causal"
	KindLlama    Kind = "llama"
)

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindSeqToSeq, KindCausal, KindLlama}
}

// ParseKind maps a model name to its Kind. Matching is exact.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindSeqToSeq, KindCausal, KindLlama:
		return Kind(name), nil
	}
	return "", fmt.Errorf("%w: %s", errors.ErrInvalidModelName, name)
}

// String returns the model name for the kind.
func (k Kind) String() string {
	return string(k)
}

// DecoderOnly reports whether generated sequences echo the input ids before the continuation.
func (k Kind) DecoderOnly() bool {
	return k == KindCausal || k == KindLlama
}
