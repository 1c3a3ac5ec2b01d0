package output

import (
	"os"
	"testing"
)

func TestIsColorSupported(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{name: "NO_COLOR disables", env: map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}, want: false},
		{name: "FORCE_COLOR enables", env: map[string]string{"FORCE_COLOR": "1"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetForTest(t, "NO_COLOR")
			unsetForTest(t, "FORCE_COLOR")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			ResetColorDetection()
			t.Cleanup(ResetColorDetection)

			if got := IsColorSupported(); got != tt.want {
				t.Errorf("IsColorSupported() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsColorSupported_Cached(t *testing.T) {
	unsetForTest(t, "NO_COLOR")
	t.Setenv("FORCE_COLOR", "1")
	ResetColorDetection()
	t.Cleanup(ResetColorDetection)

	if !IsColorSupported() {
		t.Fatal("expected colors with FORCE_COLOR")
	}

	t.Setenv("NO_COLOR", "1")
	if !IsColorSupported() {
		t.Error("expected cached result until ResetColorDetection")
	}

	ResetColorDetection()
	if IsColorSupported() {
		t.Error("expected NO_COLOR to apply after reset")
	}
}

func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}
