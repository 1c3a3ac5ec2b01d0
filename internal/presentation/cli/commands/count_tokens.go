package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/evalrunner/internal/application/tokencount"
	"github.com/jbctechsolutions/evalrunner/internal/infrastructure/watcher"
	"github.com/jbctechsolutions/evalrunner/internal/presentation/cli/output"
)

type countTokensOptions struct {
	tokenizer string
	encoding  string
	watch     bool
	total     bool
}

// NewCountTokensCmd creates the count-tokens command.
func NewCountTokensCmd() *cobra.Command {
	opts := &countTokensOptions{}

	cmd := &cobra.Command{
		Use:   "count-tokens [dir]",
		Short: "Count tokens in JSON training data",
		Long: `Count the tokens of every string in each .json file directly inside dir,
descending through nested arrays and objects. Numbers, booleans and nulls count
as zero. Files are processed in name order and printed as "<file>: <count>".

The directory defaults to the tokencount.directory setting (training_data).`,
		Example: `  # Count with the default tiktoken encoding
  evalrunner count-tokens

  # Exact counts using the configured model's tokenizer on the active backend
  evalrunner count-tokens data/ --tokenizer backend -b llamacpp

  # Re-count files as they change
  evalrunner count-tokens --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runCountTokens(cmd, opts, dir)
		},
	}

	cmd.Flags().StringVarP(&opts.tokenizer, "tokenizer", "t", "", "tokenizer source: tiktoken, backend (default from config)")
	cmd.Flags().StringVarP(&opts.encoding, "encoding", "e", "", "tiktoken encoding (default from config)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep running and re-count files when they change")
	cmd.Flags().BoolVar(&opts.total, "total", false, "print the total after the per-file counts")

	return cmd
}

func runCountTokens(cmd *cobra.Command, opts *countTokensOptions, dir string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = container.Config().TokenCount.Directory
	}

	ctx := cmd.Context()
	counter, err := container.TokenCounter(ctx, opts.tokenizer, opts.encoding)
	if err != nil {
		return err
	}

	jsonOut := formatter.Format() == output.FormatJSON

	var printFile func(tokencount.FileCount)
	if !jsonOut {
		printFile = func(fc tokencount.FileCount) {
			_ = formatter.FileTokens(fc.File, fc.Tokens)
		}
	}

	result, err := counter.CountDirFunc(ctx, dir, printFile)
	if err != nil {
		return err
	}

	err = formatter.Render(result, func() error {
		if opts.total {
			return formatter.TokenTotal(result.Total)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !opts.watch {
		return nil
	}

	w, err := watcher.New(watcher.DefaultConfig())
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if !jsonOut {
		_ = formatter.Info("Watching %s for changes (Ctrl-C to stop)", dir)
	}

	return counter.Watch(ctx, dir, w, func(fc tokencount.FileCount, err error) {
		if err != nil {
			_ = formatter.Error("%s", err.Error())
			return
		}
		_ = formatter.Render(fc, func() error {
			return formatter.FileTokens(fc.File, fc.Tokens)
		})
	})
}
