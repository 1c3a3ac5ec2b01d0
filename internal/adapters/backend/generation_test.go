package backend

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

func TestTokenBudget(t *testing.T) {
	tests := []struct {
		name        string
		req         ports.GenerateRequest
		decoderOnly bool
		want        int
	}{
		{
			name:        "max new tokens wins",
			req:         ports.GenerateRequest{InputIDs: []int{1, 2, 3}, MaxLength: 4, MaxNewTokens: 7},
			decoderOnly: true,
			want:        7,
		},
		{
			name:        "decoder-only max length includes prompt",
			req:         ports.GenerateRequest{InputIDs: []int{1, 2, 3}, MaxLength: 10},
			decoderOnly: true,
			want:        7,
		},
		{
			name:        "decoder-only prompt longer than max length",
			req:         ports.GenerateRequest{InputIDs: []int{1, 2, 3, 4, 5}, MaxLength: 3},
			decoderOnly: true,
			want:        0,
		},
		{
			name: "seq2seq max length bounds output",
			req:  ports.GenerateRequest{InputIDs: []int{1, 2, 3}, MaxLength: 512},
			want: 512,
		},
		{
			name: "unset falls back to default",
			req:  ports.GenerateRequest{InputIDs: []int{1}},
			want: DefaultMaxLength,
		},
		{
			name:        "unset decoder-only subtracts prompt",
			req:         ports.GenerateRequest{InputIDs: []int{1, 2}},
			decoderOnly: true,
			want:        DefaultMaxLength - 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenBudget(tt.req, tt.decoderOnly); got != tt.want {
				t.Errorf("TokenBudget() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssembleOutput(t *testing.T) {
	input := []int{1, 2}
	generated := []int{3, 4}

	if diff := cmp.Diff([]int{1, 2, 3, 4}, AssembleOutput(input, generated, true)); diff != "" {
		t.Errorf("decoder-only output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 4}, AssembleOutput(input, generated, false)); diff != "" {
		t.Errorf("seq2seq output mismatch (-want +got):\n%s", diff)
	}

	out := AssembleOutput(input, generated, false)
	out[0] = 99
	if generated[0] != 3 {
		t.Error("AssembleOutput must not alias the generated slice")
	}
}

func TestStripSpecial(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "<s> hello</s>", want: " hello"},
		{in: "answer<|endoftext|>", want: "answer"},
		{in: "<|begin_of_text|>hi<|eot_id|>", want: "hi"},
		{in: "plain text", want: "plain text"},
	}

	for _, tt := range tests {
		if got := StripSpecial(tt.in); got != tt.want {
			t.Errorf("StripSpecial(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
