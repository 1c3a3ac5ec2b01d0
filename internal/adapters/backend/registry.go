// Package backend provides the registry of inference backends and helpers
// shared by the backend adapters.
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/httpclient"
)

// Registry manages the registration and lookup of backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]ports.BackendPort
	order    []string // maintains registration order
}

// NewRegistry creates a new empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]ports.BackendPort),
		order:    make([]string, 0),
	}
}

// Register adds a backend to the registry.
// If a backend with the same name already exists, it will be replaced.
func (r *Registry) Register(b ports.BackendPort) error {
	if b == nil {
		return fmt.Errorf("backend cannot be nil")
	}

	info := b.Info()
	if info.Name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}

	r.backends[info.Name] = b
	return nil
}

// Get retrieves a backend by name.
// Returns nil if the backend is not found.
func (r *Registry) Get(name string) ports.BackendPort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[name]
}

// GetRequired retrieves a backend by name, returning an error if not found.
func (r *Registry) GetRequired(name string) (ports.BackendPort, error) {
	b := r.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrBackendNotFound, name)
	}
	return b, nil
}

// List returns all registered backend names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// ListBackends returns all registered backends in registration order.
func (r *Registry) ListBackends() []ports.BackendPort {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ports.BackendPort, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.backends[name])
	}
	return result
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// HealthReport pairs a backend name with its health.
type HealthReport struct {
	Name   string
	Info   ports.BackendInfo
	Status *ports.HealthStatus
	Err    error
}

// CheckAll runs HealthCheck on every backend concurrently. Each check gets its
// own timeout (none when timeout <= 0) and sends its requests without retries.
// Reports are returned in registration order.
func (r *Registry) CheckAll(ctx context.Context, timeout time.Duration) []HealthReport {
	backends := r.ListBackends()
	ctx = httpclient.WithoutRetry(ctx)

	reports := make([]HealthReport, len(backends))
	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			info := b.Info()
			status, err := b.HealthCheck(checkCtx)
			reports[i] = HealthReport{
				Name:   info.Name,
				Info:   info,
				Status: status,
				Err:    err,
			}
		}()
	}
	wg.Wait()

	return reports
}
