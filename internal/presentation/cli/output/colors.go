package output

import (
	"os"
	"sync"
)

var (
	colorOnce    sync.Once
	colorEnabled bool
)

// IsColorSupported reports whether stdout should receive ANSI colors.
// NO_COLOR disables and FORCE_COLOR enables colors regardless of the terminal.
func IsColorSupported() bool {
	colorOnce.Do(func() {
		colorEnabled = detectColorSupport()
	})
	return colorEnabled
}

func detectColorSupport() bool {
	// https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if _, exists := os.LookupEnv("FORCE_COLOR"); exists {
		return true
	}

	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	if stat.Mode()&os.ModeCharDevice == 0 {
		return false
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// ResetColorDetection clears the cached detection result.
func ResetColorDetection() {
	colorOnce = sync.Once{}
	colorEnabled = false
}
