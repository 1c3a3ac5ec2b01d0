package backend

import "strings"

// specialTokenText lists the textual forms of control tokens used by common
// model families. Servers that detokenize without a skip option render them verbatim.
var specialTokenText = []string{
	"<s>",
	"</s>",
	"<unk>",
	"<pad>",
	"<|endoftext|>",
	"<|im_start|>",
	"<|im_end|>",
	"<|begin_of_text|>",
	"<|end_of_text|>",
	"<|eot_id|>",
}

// StripSpecial removes special token markers from detokenized text.
func StripSpecial(text string) string {
	for _, s := range specialTokenText {
		text = strings.ReplaceAll(text, s, "")
	}
	return text
}
