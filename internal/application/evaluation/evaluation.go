// Package evaluation provides EvalModel, a uniform run-a-prompt interface over
// the supported model families, and SelectModel for choosing one by name.
package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jbctechsolutions/evalrunner/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/evalrunner/internal/domain/errors"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/logging"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/metrics"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/tracing"
)

// EvalModel runs prompts against a lazily loaded model.
type EvalModel interface {
	// Run generates a completion for prompt and returns the decoded text.
	Run(ctx context.Context, prompt string) (string, error)

	// CheckValidLength reports whether text fits within MaxInputLength tokens.
	CheckValidLength(ctx context.Context, text string) (bool, error)

	Kind() model.Kind
	Config() model.Config

	// Loaded reports whether both the model and tokenizer handles are held.
	Loaded() bool
}

// Instruments carries the observability hooks shared by every variant.
// Zero fields fall back to the process-wide defaults; a nil Metrics records nothing.
type Instruments struct {
	Logger  *logging.Logger
	Tracer  *tracing.Tracer
	Metrics *metrics.Metrics
}

func (i Instruments) withDefaults() Instruments {
	if i.Logger == nil {
		i.Logger = logging.Default()
	}
	if i.Tracer == nil {
		i.Tracer = tracing.Default()
	}
	return i
}

// Factory builds EvalModels that share a set of Instruments.
type Factory struct {
	instruments Instruments
}

// NewFactory creates a Factory.
func NewFactory(instruments Instruments) *Factory {
	return &Factory{instruments: instruments.withDefaults()}
}

// Select returns the EvalModel variant registered under name, configured by opts.
// Nothing is loaded until the model is first used.
func (f *Factory) Select(name string, backend ports.BackendPort, opts ...model.Option) (EvalModel, error) {
	kind, err := model.ParseKind(name)
	if err != nil {
		return nil, err
	}

	cfg := model.NewConfig(opts...)
	switch kind {
	case model.KindSeqToSeq:
		return &SeqToSeqModel{base: newBase(kind, cfg, backend, f.instruments)}, nil
	case model.KindCausal:
		return &CausalModel{base: newBase(kind, cfg, backend, f.instruments)}, nil
	case model.KindLlama:
		return &LlamaModel{base: newBase(kind, cfg, backend, f.instruments)}, nil
	}
	return nil, fmt.Errorf("%w: %s", domainErrors.ErrInvalidModelName, name)
}

// SelectModel is Select on a Factory with default Instruments.
func SelectModel(name string, backend ports.BackendPort, opts ...model.Option) (EvalModel, error) {
	return NewFactory(Instruments{}).Select(name, backend, opts...)
}

// base holds the state common to every variant: configuration, the backend
// and the lazily loaded handles.
type base struct {
	kind    model.Kind
	cfg     model.Config
	backend ports.BackendPort
	inst    Instruments

	mu        sync.Mutex
	generator ports.Generator
	tokenizer ports.Tokenizer
}

func newBase(kind model.Kind, cfg model.Config, backend ports.BackendPort, inst Instruments) *base {
	return &base{
		kind:    kind,
		cfg:     cfg,
		backend: backend,
		inst:    inst.withDefaults(),
	}
}

// Kind returns the model family.
func (b *base) Kind() model.Kind {
	return b.kind
}

// Config returns a copy of the configuration.
func (b *base) Config() model.Config {
	return b.cfg
}

// Loaded reports whether both handles are held.
func (b *base) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generator != nil && b.tokenizer != nil
}

// load acquires any missing handle. Llama loads the tokenizer before the model;
// the other families load the model first. A handle is kept only once it loads.
func (b *base) load(ctx context.Context) (ports.Generator, ports.Tokenizer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generator != nil && b.tokenizer != nil {
		return b.generator, b.tokenizer, nil
	}

	if b.backend == nil {
		return nil, nil, domainErrors.NewError(domainErrors.CodeConfiguration, "no backend configured", domainErrors.ErrBackendNotFound)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, nil, domainErrors.NewError(domainErrors.CodeValidation, "invalid model configuration", err)
	}

	steps := []func(context.Context) error{b.loadModel, b.loadTokenizer}
	if b.kind == model.KindLlama {
		steps = []func(context.Context) error{b.loadTokenizer, b.loadModel}
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, nil, err
		}
	}

	return b.generator, b.tokenizer, nil
}

func (b *base) request() ports.LoadRequest {
	return ports.LoadRequest{
		ModelPath: b.cfg.ModelPath,
		Device:    b.cfg.Device,
		Family:    b.kind,
	}
}

func (b *base) loadModel(ctx context.Context) error {
	if b.generator != nil {
		return nil
	}
	gen, err := loadHandle(ctx, b, "model", b.backend.LoadModel)
	if err != nil {
		return err
	}
	b.generator = gen
	return nil
}

func (b *base) loadTokenizer(ctx context.Context) error {
	if b.tokenizer != nil {
		return nil
	}
	tok, err := loadHandle(ctx, b, "tokenizer", b.backend.LoadTokenizer)
	if err != nil {
		return err
	}
	b.tokenizer = tok
	return nil
}

func loadHandle[T any](ctx context.Context, b *base, handle string, fn func(context.Context, ports.LoadRequest) (T, error)) (T, error) {
	backendName := b.backend.Info().Name
	ctx = logging.WithBackend(ctx, backendName)
	ctx, span := b.inst.Tracer.StartLoadSpan(ctx, handle, backendName, b.cfg.ModelPath)

	logging.LogModelLoad(ctx, b.inst.Logger, handle, b.cfg.ModelPath, b.cfg.Device)
	start := time.Now()

	h, err := fn(ctx, b.request())
	b.inst.Metrics.ObserveLoad(handle, err)
	span.Finish(err)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("loading %s for %s: %w", handle, b.cfg.ModelPath, err)
	}

	logging.LogModelLoaded(ctx, b.inst.Logger, handle, b.cfg.ModelPath, time.Since(start))
	return h, nil
}

// generation is a variant-specific Run body operating on loaded handles.
type generation func(ctx context.Context, gen ports.Generator, tok ports.Tokenizer) (text string, inputTokens, outputTokens int, err error)

// run wraps a generation with loading, tracing, logging and metrics.
func (b *base) run(ctx context.Context, fn generation) (string, error) {
	ctx = logging.WithModelKind(ctx, b.kind.String())
	if logging.CorrelationID(ctx) == "" {
		ctx = logging.WithNewCorrelationID(ctx)
	}
	ctx, span := b.inst.Tracer.StartRunSpan(ctx, "run", b.kind.String(), b.cfg.ModelPath)
	start := time.Now()

	text, in, out, err := b.runLoaded(ctx, fn)
	duration := time.Since(start)

	b.inst.Metrics.ObserveRun(b.kind.String(), duration, err)
	if err != nil {
		logging.LogRunFailed(ctx, b.inst.Logger, err, duration)
		span.Finish(err)
		return "", err
	}

	span.SetTokens(in, out)
	span.Finish(nil)
	logging.LogRunComplete(ctx, b.inst.Logger, in, out, duration)
	return text, nil
}

func (b *base) runLoaded(ctx context.Context, fn generation) (string, int, int, error) {
	gen, tok, err := b.load(ctx)
	if err != nil {
		return "", 0, 0, err
	}
	return fn(ctx, gen, tok)
}

// CheckValidLength loads the handles and compares the token count of text,
// special tokens included, with MaxInputLength.
func (b *base) CheckValidLength(ctx context.Context, text string) (bool, error) {
	ctx = logging.WithModelKind(ctx, b.kind.String())
	ctx, span := b.inst.Tracer.StartRunSpan(ctx, "check_length", b.kind.String(), b.cfg.ModelPath)

	valid, n, err := b.checkLength(ctx, text)
	if err != nil {
		span.Finish(err)
		return false, err
	}

	span.SetAttribute("tokens.input", n)
	span.SetAttribute("length.valid", valid)
	span.Finish(nil)
	b.inst.Metrics.ObserveLengthCheck(valid)
	return valid, nil
}

func (b *base) checkLength(ctx context.Context, text string) (bool, int, error) {
	_, tok, err := b.load(ctx)
	if err != nil {
		return false, 0, err
	}

	ids, err := tok.Encode(ctx, text, true)
	if err != nil {
		return false, 0, fmt.Errorf("encoding text: %w", err)
	}
	return len(ids) <= b.cfg.MaxInputLength, len(ids), nil
}

// continuation returns the ids generated after the prompt. Decoder-only
// backends echo the prompt ids ahead of the new ones.
func continuation(output []int, inputLen int) []int {
	if inputLen >= len(output) {
		return nil
	}
	return output[inputLen:]
}
