// Package metrics holds the Prometheus collectors for evaluation runs and token counting.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	ModelLoads     *prometheus.CounterVec
	LengthChecks   *prometheus.CounterVec
	TokensCounted  *prometheus.CounterVec
	FilesCounted   prometheus.Counter
	BackendLatency *prometheus.HistogramVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalrunner_runs_total",
			Help: "Total number of EvalModel runs",
		}, []string{"model_kind", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalrunner_run_duration_seconds",
			Help:    "Duration of EvalModel runs including lazy loading",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model_kind"}),
		ModelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalrunner_model_loads_total",
			Help: "Total number of model and tokenizer handle loads",
		}, []string{"handle", "status"}),
		LengthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalrunner_length_checks_total",
			Help: "Total number of input length checks",
		}, []string{"valid"}),
		TokensCounted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalrunner_tokens_counted_total",
			Help: "Total number of tokens counted in training files",
		}, []string{"file"}),
		FilesCounted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalrunner_files_counted_total",
			Help: "Total number of JSON files counted",
		}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalrunner_backend_request_duration_seconds",
			Help:    "Latency of backend HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "endpoint"}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ModelLoads,
		m.LengthChecks,
		m.TokensCounted,
		m.FilesCounted,
		m.BackendLatency,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records one EvalModel run.
func (m *Metrics) ObserveRun(kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status(err)).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveLoad records one handle load.
func (m *Metrics) ObserveLoad(handle string, err error) {
	if m == nil {
		return
	}
	m.ModelLoads.WithLabelValues(handle, status(err)).Inc()
}

// ObserveLengthCheck records one CheckValidLength outcome.
func (m *Metrics) ObserveLengthCheck(valid bool) {
	if m == nil {
		return
	}
	m.LengthChecks.WithLabelValues(fmt.Sprint(valid)).Inc()
}

// ObserveFile records the token count of one file.
func (m *Metrics) ObserveFile(file string, tokens int) {
	if m == nil {
		return
	}
	m.FilesCounted.Inc()
	m.TokensCounted.WithLabelValues(file).Add(float64(tokens))
}

// ObserveBackendRequest records the latency of one backend call.
func (m *Metrics) ObserveBackendRequest(backend, endpoint string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(backend, endpoint).Observe(duration.Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
