package commands

import (
	"github.com/spf13/cobra"
)

// CheckLengthResult is the JSON output of check-length.
type CheckLengthResult struct {
	ModelName      string `json:"model_name"`
	ModelPath      string `json:"model_path"`
	MaxInputLength int    `json:"max_input_length"`
	Valid          bool   `json:"valid"`
}

// NewCheckLengthCmd creates the check-length command.
func NewCheckLengthCmd() *cobra.Command {
	var flags modelFlags

	cmd := &cobra.Command{
		Use:   "check-length <text>",
		Short: "Check whether text fits the model's input length",
		Long: `Tokenize text with the model's tokenizer, special tokens included, and report
whether it is at most --max-input-length tokens long.`,
		Example: `  evalrunner check-length -n causal -m gpt2 --max-input-length 16 "How long is this?"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckLength(cmd, &flags, args[0])
		},
	}

	flags.register(cmd)

	return cmd
}

func runCheckLength(cmd *cobra.Command, flags *modelFlags, text string) error {
	formatter := GetFormatter()

	m, err := flags.selectModel(cmd)
	if err != nil {
		return err
	}

	valid, err := m.CheckValidLength(cmd.Context(), text)
	if err != nil {
		return err
	}

	result := CheckLengthResult{
		ModelName:      flags.Name,
		ModelPath:      flags.Path,
		MaxInputLength: flags.MaxInputLength,
		Valid:          valid,
	}
	return formatter.Render(result, func() error {
		return formatter.LengthVerdict(valid, flags.MaxInputLength)
	})
}
