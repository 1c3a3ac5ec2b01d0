package model

import "strings"

// AlpacaTemplate is the instruction-following prompt used for the llama family.
const AlpacaTemplate = "Below is an instruction that describes a task. " +
	"Write a response that appropriately completes the request.\n\n" +
	"### Instruction:\n{instruction}\n\n### Response:"

// FormatInstruction renders prompt into AlpacaTemplate.
func FormatInstruction(prompt string) string {
	return strings.Replace(AlpacaTemplate, "{instruction}", prompt, 1)
}
