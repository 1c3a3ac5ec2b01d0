package tokenizer

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
)

// DefaultCacheSize is the number of distinct strings whose counts are memoized.
const DefaultCacheSize = 4096

// CachingTokenizer memoizes token counts for repeated strings.
// Training files repeat instruction and system text heavily.
type CachingTokenizer struct {
	next  ports.TextTokenizer
	cache *lru.Cache[string, int]
}

var _ ports.TextTokenizer = (*CachingTokenizer)(nil)

// NewCachingTokenizer wraps next with an LRU of the given size.
func NewCachingTokenizer(next ports.TextTokenizer, size int) (*CachingTokenizer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	return &CachingTokenizer{next: next, cache: cache}, nil
}

// Tokenize returns the cached count for text, computing it on a miss.
// Errors are not cached.
func (c *CachingTokenizer) Tokenize(ctx context.Context, text string) (int, error) {
	if n, ok := c.cache.Get(text); ok {
		return n, nil
	}

	n, err := c.next.Tokenize(ctx, text)
	if err != nil {
		return 0, err
	}

	c.cache.Add(text, n)
	return n, nil
}

// Len returns the number of cached entries.
func (c *CachingTokenizer) Len() int {
	return c.cache.Len()
}
