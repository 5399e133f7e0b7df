package lazyllm

import (
	"strings"
	"sync"

	"github.com/coder/lazyllm/ai"
	"github.com/tiktoken-go/tokenizer"
)

var cl100k = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.Get(tokenizer.Cl100kBase)
})

func encoder() tokenizer.Codec {
	enc, err := cl100k()
	if err != nil {
		panic("failed to get tokenizer: " + err.Error())
	}
	return enc
}

// CountTokens returns the cl100k token count of the message contents. It is
// an estimate for display; providers do their own accounting.
func CountTokens(msgs ...ai.ChatMessage) int {
	enc := encoder()
	var tokens int
	for _, msg := range msgs {
		ts, _, _ := enc.Encode(msg.Content)
		tokens += len(ts)
	}
	return tokens
}

// Preview renders s on a single line for debug output, cut after maxTokens
// tokens.
func Preview(s string, maxTokens int) string {
	enc := encoder()
	tokens, _, _ := enc.Encode(s)
	cut := len(tokens) > maxTokens
	if cut {
		s, _ = enc.Decode(tokens[:maxTokens])
	}
	s = strings.ReplaceAll(s, "\n", `\n`)
	if cut {
		s += " …"
	}
	return s
}
