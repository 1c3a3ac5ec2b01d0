package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/evalrunner/internal/application/evaluation"
	"github.com/jbctechsolutions/evalrunner/internal/domain/model"
	"github.com/jbctechsolutions/evalrunner/internal/presentation/cli/output"
)

// Defaults for test-model.
const (
	DefaultPrompt    = "Write an email about an alpaca that likes flan."
	DefaultModelName = "seq_to_seq"
	DefaultModelPath = "google/flan-t5-base"
)

// modelFlags are the flags shared by commands that select an EvalModel.
// Unset flags fall back to the model section of the configuration.
type modelFlags struct {
	Name            string
	Path            string
	Device          string
	MaxInputLength  int
	MaxOutputLength int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Name, "model-name", "n", DefaultModelName, "model family: "+strings.Join(kindNames(), ", "))
	cmd.Flags().StringVarP(&f.Path, "model-path", "m", DefaultModelPath, "pretrained model identifier or path")
	cmd.Flags().StringVar(&f.Device, "device", model.DefaultDevice, "device to place the model on")
	cmd.Flags().IntVar(&f.MaxInputLength, "max-input-length", model.DefaultMaxInputLength, "maximum prompt length in tokens")
	cmd.Flags().IntVar(&f.MaxOutputLength, "max-output-length", model.DefaultMaxOutputLength, "maximum generation length in tokens")
}

// resolve fills unset flags from configuration and returns the model options.
func (f *modelFlags) resolve(cmd *cobra.Command, app *AppContext) []model.Option {
	mc := app.Config.Model
	changed := cmd.Flags().Changed

	if !changed("model-name") {
		f.Name = mc.Name
	}
	if !changed("model-path") && mc.Path != "" {
		f.Path = mc.Path
	}
	if !changed("device") {
		f.Device = mc.Device
	}
	if !changed("max-input-length") {
		f.MaxInputLength = mc.MaxInputLength
	}
	if !changed("max-output-length") {
		f.MaxOutputLength = mc.MaxOutputLength
	}

	return []model.Option{
		model.WithModelPath(f.Path),
		model.WithDevice(f.Device),
		model.WithMaxInputLength(f.MaxInputLength),
		model.WithMaxOutputLength(f.MaxOutputLength),
	}
}

// selectModel resolves the flags and selects the EvalModel on the active backend.
func (f *modelFlags) selectModel(cmd *cobra.Command) (evaluation.EvalModel, error) {
	app := GetAppContext()
	if app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	opts := f.resolve(cmd, app)
	return app.Container.SelectModel(f.Name, "", opts...)
}

func kindNames() []string {
	kinds := model.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}

// TestModelResult is the JSON output of test-model.
type TestModelResult struct {
	Prompt    string `json:"prompt"`
	ModelName string `json:"model_name"`
	ModelPath string `json:"model_path"`
	Backend   string `json:"backend"`
	Output    string `json:"output"`
}

type testModelOptions struct {
	model       modelFlags
	prompt      string
	interactive bool
}

// NewTestModelCmd creates the test-model command.
func NewTestModelCmd() *cobra.Command {
	opts := &testModelOptions{}

	cmd := &cobra.Command{
		Use:   "test-model",
		Short: "Run a prompt through a pretrained model",
		Long: `Select a model family, load the pretrained model on the active backend and
print its completion for the prompt. The invocation arguments are printed first.

With --interactive, each line read from the terminal is run through the same
model, which is loaded once on first use.`,
		Example: `  # Default: flan-t5-base answering the alpaca prompt
  evalrunner test-model

  # A causal model on vLLM
  evalrunner test-model -b vllm -n causal -m gpt2 --prompt "Once upon a time"

  # Keep the model loaded and try several prompts
  evalrunner test-model -n llama -m models/llama-7b --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestModel(cmd, opts)
		},
	}

	opts.model.register(cmd)
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", DefaultPrompt, "prompt to run")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "read prompts interactively")

	return cmd
}

func runTestModel(cmd *cobra.Command, opts *testModelOptions) error {
	formatter := GetFormatter()

	m, err := opts.model.selectModel(cmd)
	if err != nil {
		return err
	}
	backendName := GetAppContext().Config.Backend.Default

	if opts.interactive {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
			Stdin:           io.NopCloser(cmd.InOrStdin()),
			Stdout:          cmd.OutOrStdout(),
			Stderr:          cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("could not create readline: %w", err)
		}
		defer rl.Close()

		printInvocation(formatter, opts, backendName)
		_ = formatter.Info("Type a prompt and press Enter. Type /exit to quit.")
		return runREPL(cmd.Context(), rl, m, formatter)
	}

	if formatter.Format() != output.FormatJSON {
		printInvocation(formatter, opts, backendName)
	}

	text, err := runWithSpinner(cmd, formatter, "Running "+opts.model.Name+" model", func(ctx context.Context) (string, error) {
		return m.Run(ctx, opts.prompt)
	})
	if err != nil {
		return err
	}

	result := TestModelResult{
		Prompt:    opts.prompt,
		ModelName: opts.model.Name,
		ModelPath: opts.model.Path,
		Backend:   backendName,
		Output:    text,
	}
	return formatter.Render(result, func() error {
		return formatter.Println("%s", text)
	})
}

func printInvocation(formatter *output.Formatter, opts *testModelOptions, backendName string) {
	_ = formatter.Fields(
		output.Field{Key: "prompt", Value: opts.prompt},
		output.Field{Key: "model_name", Value: opts.model.Name},
		output.Field{Key: "model_path", Value: opts.model.Path},
		output.Field{Key: "backend", Value: backendName},
	)
}

// runWithSpinner shows a spinner on stderr while fn runs on an interactive terminal.
func runWithSpinner(cmd *cobra.Command, formatter *output.Formatter, msg string, fn func(context.Context) (string, error)) (string, error) {
	if formatter.Format() == output.FormatJSON || !output.IsColorSupported() {
		return fn(cmd.Context())
	}

	spinner := output.StartSpinner(cmd.ErrOrStderr(), msg)
	text, err := fn(cmd.Context())
	spinner.Stop()
	return text, err
}

// lineReader is the subset of *readline.Instance used by the REPL.
type lineReader interface {
	Readline() (string, error)
}

// runREPL runs each line through m until EOF, /exit, or ctx is done.
// Run failures are reported and the loop continues.
func runREPL(ctx context.Context, rl lineReader, m evaluation.EvalModel, formatter *output.Formatter) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		text, err := m.Run(ctx, line)
		if err != nil {
			_ = formatter.Error("%s", err.Error())
			continue
		}
		_ = formatter.Println("%s", text)
	}
}
