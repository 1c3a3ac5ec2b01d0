package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrInvalidModelName", ErrInvalidModelName, "invalid name"},
		{"ErrModelPathRequired", ErrModelPathRequired, "model path required"},
		{"ErrBackendUnreachable", ErrBackendUnreachable, "backend unreachable"},
		{"ErrModelNotServed", ErrModelNotServed, "model not served by backend"},
		{"ErrTokenizerUnavailable", ErrTokenizerUnavailable, "tokenizer unavailable"},
		{"ErrBackendNotFound", ErrBackendNotFound, "backend not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvalError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *EvalError
		want string
	}{
		{
			name: "without cause",
			err:  NewError(CodeValidation, "bad input", nil),
			want: "[VALIDATION] bad input",
		},
		{
			name: "with cause",
			err:  NewError(CodeBackend, "generate failed", errors.New("connection refused")),
			want: "[BACKEND] generate failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvalError_Unwrap(t *testing.T) {
	err := NewError(CodeBackend, "load failed", ErrBackendUnreachable)
	wrapped := fmt.Errorf("outer: %w", err)

	if !Is(wrapped, ErrBackendUnreachable) {
		t.Error("expected wrapped error to match ErrBackendUnreachable")
	}

	var evalErr *EvalError
	if !As(wrapped, &evalErr) {
		t.Fatal("expected As to find EvalError")
	}
	if evalErr.Code != CodeBackend {
		t.Errorf("got code %s, want %s", evalErr.Code, CodeBackend)
	}
}

func TestWithContext(t *testing.T) {
	err := &EvalError{Code: CodeExecution, Message: "x"}
	WithContext(err, "model_path", "gpt2")

	if got := err.Context["model_path"]; got != "gpt2" {
		t.Errorf("got %v, want gpt2", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	err := fmt.Errorf("ctx: %w", NewError(CodeConfiguration, "bad", nil))
	if got := CodeOf(err); got != CodeConfiguration {
		t.Errorf("got %q, want %q", got, CodeConfiguration)
	}
}
