// Package commands implements the CLI commands for evalrunner.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/evalrunner/internal/application"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/config"
	"github.com/jbctechsolutions/evalrunner/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Backend    string
	Verbose    bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config    *config.Config
	Formatter *output.Formatter
	Flags     *GlobalFlags
	Container *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex // Protects appCtx for thread-safe access
)

// NewRootCmd creates the root command for the evalrunner CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evalrunner",
		Short: "Evaluate pretrained language models against local inference backends",
		Long: `evalrunner runs prompts through pretrained language models served by a
local inference backend (llama.cpp, Ollama or vLLM) and counts tokens in
JSON training data.

Model families:
  • seq_to_seq  encoder-decoder models such as flan-t5
  • causal      decoder-only models such as gpt2
  • llama       instruction-tuned llama models (Alpaca prompt template)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return initializeApp(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return Shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.evalrunner/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Backend, "backend", "b", "", "inference backend: llamacpp, ollama, vllm (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewTestModelCmd())
	rootCmd.AddCommand(NewCheckLengthCmd())
	rootCmd.AddCommand(NewCountTokensCmd())
	rootCmd.AddCommand(NewStatusCmd())

	return rootCmd
}

// newFormatter builds the formatter for the global --output flag.
func newFormatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(globalFlags.Output)
	if err != nil {
		return nil, err
	}

	return output.NewFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	), nil
}

// initializeApp loads configuration and builds the application container.
func initializeApp(cmd *cobra.Command) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}
	if globalFlags.Backend != "" {
		cfg.Backend.Default = globalFlags.Backend
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := application.NewContainer(cfg, globalFlags.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appCtxMu.Lock()
	appCtx = &AppContext{
		Config:    cfg,
		Formatter: formatter,
		Flags:     &globalFlags,
		Container: container,
	}
	appCtxMu.Unlock()

	return nil
}

// loadConfig loads configuration from the specified file or default location.
func loadConfig(configPath string) (*config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	return loader.Load(configPath)
}

// GetAppContext returns the current application context.
// Returns nil if the app hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter.
// Creates a default formatter if app context is not initialized.
func GetFormatter() *output.Formatter {
	if ctx := GetAppContext(); ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter(output.WithColor(output.IsColorSupported()))
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	if ctx := GetAppContext(); ctx != nil {
		return ctx.Container
	}
	return nil
}

// requireContainer returns the container or an error if initialization was skipped.
func requireContainer() (*application.Container, error) {
	c := GetContainer()
	if c == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return c, nil
}

// Shutdown flushes metrics and traces and releases the application context.
func Shutdown() error {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()

	if appCtx == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := appCtx.Container.Close(ctx)
	appCtx = nil
	return err
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- NewRootCmd().ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			_ = GetFormatter().Error("%s", err.Error())
			_ = Shutdown()
			os.Exit(1)
		}
	case <-ctx.Done():
		// Give the command a moment to observe cancellation and flush output.
		select {
		case <-errChan:
		case <-time.After(2 * time.Second):
		}
		_ = GetFormatter().Warning("Interrupted, shutting down...")
		_ = Shutdown()
		os.Exit(130) // Standard exit code for SIGINT
	}
}
