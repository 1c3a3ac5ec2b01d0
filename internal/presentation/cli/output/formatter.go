// Package output renders evalrunner results as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Format is the --output mode.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat parses the --output flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", s)
	}
}

// Color is an ANSI escape sequence.
type Color string

const (
	ColorReset  Color = "\033[0m"
	ColorRed    Color = "\033[31m"
	ColorGreen  Color = "\033[32m"
	ColorYellow Color = "\033[33m"
	ColorBlue   Color = "\033[34m"
	ColorCyan   Color = "\033[36m"
	ColorBold   Color = "\033[1m"
	ColorDim    Color = "\033[2m"
)

// Formatter writes command results to one writer. It is safe for concurrent
// use, which watch mode relies on.
type Formatter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	color  bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// NewFormatter creates a text Formatter on stdout with colors enabled.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{w: os.Stdout, format: FormatText, color: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) { f.w = w }
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(f *Formatter) { f.format = format }
}

// WithColor enables or disables ANSI colors.
func WithColor(enabled bool) Option {
	return func(f *Formatter) { f.color = enabled }
}

// Format returns the output format.
func (f *Formatter) Format() Format {
	return f.format
}

// Render writes v as JSON in JSON mode and calls text otherwise.
func (f *Formatter) Render(v any, text func() error) error {
	if f.format == FormatJSON {
		return f.JSON(v)
	}
	return text()
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Println writes a formatted line.
func (f *Formatter) Println(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.w, format+"\n", args...)
	return err
}

// Colorize wraps text in color when colors are enabled.
func (f *Formatter) Colorize(text string, color Color) string {
	if !f.color {
		return text
	}
	return string(color) + text + string(ColorReset)
}

func (f *Formatter) mark(symbol string, color Color, format string, args []any) error {
	return f.Println("%s", f.Colorize(symbol+" "+fmt.Sprintf(format, args...), color))
}

// Success prints a line marked ✓.
func (f *Formatter) Success(format string, args ...any) error {
	return f.mark("✓", ColorGreen, format, args)
}

// Error prints a line marked ✗.
func (f *Formatter) Error(format string, args ...any) error {
	return f.mark("✗", ColorRed, format, args)
}

// Warning prints a line marked ⚠.
func (f *Formatter) Warning(format string, args ...any) error {
	return f.mark("⚠", ColorYellow, format, args)
}

// Info prints a line marked ℹ.
func (f *Formatter) Info(format string, args ...any) error {
	return f.mark("ℹ", ColorBlue, format, args)
}

// Header prints a bold title underlined to its width.
func (f *Formatter) Header(title string) error {
	return f.Println("%s\n%s", f.Colorize(title, ColorBold), strings.Repeat("─", displayWidth(title)))
}

// Item prints an indented "key: value" line.
func (f *Formatter) Item(key, value string) error {
	return f.Println("  %s: %s", f.Colorize(key, ColorDim), value)
}

// Health colors a health status: healthy green, degraded yellow, anything else red.
func (f *Formatter) Health(status string) string {
	switch status {
	case "healthy":
		return f.Colorize(status, ColorGreen)
	case "degraded":
		return f.Colorize(status, ColorYellow)
	default:
		return f.Colorize(status, ColorRed)
	}
}
