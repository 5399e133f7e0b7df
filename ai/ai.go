// Package ai wraps the go-openai client behind a lazily constructed handle and
// provides helpers for shaping conversations before they are sent.
package ai

import (
	"github.com/sashabaranov/go-openai"
)

// Role is the role of the message sender.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Valid reports whether r is one of the roles a conversation may carry.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant:
		return true
	}
	return false
}

// Opposite returns the conversational counterpart of r. System has none and
// is returned unchanged.
func (r Role) Opposite() Role {
	switch r {
	case User:
		return Assistant
	case Assistant:
		return User
	}
	return r
}

type ChatMessage struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// OpenAI converts msgs into the go-openai request representation.
func OpenAI(msgs []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// FromOpenAI converts go-openai messages back. Only role and content are kept.
func FromOpenAI(msgs []openai.ChatCompletionMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{
			Role:    Role(m.Role),
			Content: m.Content,
		})
	}
	return out
}
