// Package tokencount sums the token lengths of every string in JSON training files.
package tokencount

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/metrics"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/tracing"
)

// DefaultDir is the directory scanned when none is given.
const DefaultDir = "training_data"

// FileSuffix selects the files CountDir reads. The match is case-sensitive.
const FileSuffix = ".json"

// FileCount is the token total of one file.
type FileCount struct {
	File   string `json:"file"`
	Tokens int    `json:"tokens"`
}

// Result is the outcome of counting a directory.
type Result struct {
	Dir   string      `json:"dir"`
	Files []FileCount `json:"files"`
	Total int         `json:"total"`
}

// Counter counts tokens with a TextTokenizer.
type Counter struct {
	tokenizer ports.TextTokenizer
	logger    *logging.Logger
	tracer    *tracing.Tracer
	metrics   *metrics.Metrics
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(c *Counter) {
		c.tracer = tracer
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Counter) {
		c.metrics = m
	}
}

// NewCounter creates a Counter.
func NewCounter(tokenizer ports.TextTokenizer, opts ...Option) *Counter {
	c := &Counter{
		tokenizer: tokenizer,
		logger:    logging.Default(),
		tracer:    tracing.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CountValue returns the number of tokens in every string reachable from v.
// Arrays and objects are walked recursively; other values count as zero.
func (c *Counter) CountValue(ctx context.Context, v any) (int, error) {
	switch val := v.(type) {
	case string:
		return c.tokenizer.Tokenize(ctx, val)
	case []any:
		total := 0
		for _, item := range val {
			n, err := c.CountValue(ctx, item)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case map[string]any:
		total := 0
		for _, item := range val {
			n, err := c.CountValue(ctx, item)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	default:
		return 0, nil
	}
}

// CountFile decodes the JSON document at path and counts its strings.
func (c *Counter) CountFile(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)
	ctx = logging.WithFile(ctx, name)
	ctx, span := c.tracer.StartCountSpan(ctx, name)
	start := time.Now()

	n, err := c.countFile(ctx, path)
	if err != nil {
		span.Finish(err)
		return 0, err
	}

	span.SetAttribute("tokens.count", n)
	span.Finish(nil)
	c.metrics.ObserveFile(name, n)
	logging.LogFileCounted(ctx, c.logger, n, time.Since(start))
	return n, nil
}

func (c *Counter) countFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	n, err := c.CountValue(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("tokenizing: %w", err)
	}
	return n, nil
}

// CountDir counts every regular file (or symlink to one) directly in dir whose
// name ends in FileSuffix, in lexical order. The first failure stops the scan.
func (c *Counter) CountDir(ctx context.Context, dir string) (*Result, error) {
	return c.CountDirFunc(ctx, dir, nil)
}

// CountDirFunc is CountDir calling fn after each file is counted.
func (c *Counter) CountDirFunc(ctx context.Context, dir string, fn func(FileCount)) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	result := &Result{Dir: dir, Files: []FileCount{}}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasSuffix(entry.Name(), FileSuffix) {
			continue
		}

		// Symlinks are followed; only the target's type matters.
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		n, err := c.CountFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}

		fc := FileCount{File: entry.Name(), Tokens: n}
		result.Files = append(result.Files, fc)
		result.Total += n
		if fn != nil {
			fn(fc)
		}
	}

	return result, nil
}
