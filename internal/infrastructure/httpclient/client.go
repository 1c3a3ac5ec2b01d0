// Package httpclient builds the retrying HTTP client shared by backend adapters.
package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Default retry settings. Inference servers answer 503 while weights are still loading.
const (
	DefaultTimeout      = 5 * time.Minute
	DefaultRetryMax     = 30
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 2 * time.Second
)

// Config holds HTTP transport settings.
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		RetryMax:     DefaultRetryMax,
		RetryWaitMin: DefaultRetryWaitMin,
		RetryWaitMax: DefaultRetryWaitMax,
	}
}

type noRetryKey struct{}

// WithoutRetry marks requests made with ctx to be sent once.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

// RetryPolicy retries only 503 responses. Connection errors fail at once so a
// stopped server is reported without waiting out the backoff.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil || resp == nil {
		return false, nil
	}
	if skip, _ := ctx.Value(noRetryKey{}).(bool); skip {
		return false, nil
	}
	return resp.StatusCode == http.StatusServiceUnavailable, nil
}

// New returns a standard *http.Client whose transport retries 503 responses
// with exponential backoff.
func New(cfg Config) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.CheckRetry = RetryPolicy
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.Logger = nil
	if cfg.Logger != nil {
		rc.Logger = cfg.Logger
	}
	// Hand the last response back to the caller so adapters can parse the error body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Timeout = cfg.Timeout
	return client
}
