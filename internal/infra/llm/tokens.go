package llm

import "strings"

var specialTokens = strings.NewReplacer(
	"<|endoftext|>", "",
	"<|im_start|>", "",
	"<|im_end|>", "",
	"<s>", "",
	"</s>", "",
	"<pad>", "",
	"<unk>", "",
)

// StripSpecialTokens removes tokenizer control markers from decoded model output.
func StripSpecialTokens(text string) string {
	return strings.TrimSpace(specialTokens.Replace(text))
}
