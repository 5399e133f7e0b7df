package ai

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Fillers maps a role to the content used when a synthetic message of that
// role has to be inserted.
type Fillers map[Role]string

// DefaultFillers returns a new table with empty filler content for both
// conversational roles.
func DefaultFillers() Fillers {
	return Fillers{
		User:      "",
		Assistant: "",
	}
}

// InvalidRoleError is returned when a message carries a role outside of
// system, user and assistant.
type InvalidRoleError struct {
	Role  Role
	Index int
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("message %d: role %q not allowed", e.Index, e.Role)
}

// Alternate returns a copy of msgs in which user and assistant messages
// strictly alternate. Whenever two consecutive input messages share a
// conversational role, one filler message of the opposite role is inserted
// between them. System messages are passed through and never trigger an
// insertion.
//
// A nil fillers table behaves like DefaultFillers. Neither msgs nor fillers
// is modified.
func Alternate(msgs []ChatMessage, fillers Fillers) ([]ChatMessage, error) {
	return alternate(msgs, fillers,
		func(m ChatMessage) Role { return m.Role },
		func(r Role, content string) ChatMessage {
			return ChatMessage{Role: r, Content: content}
		},
	)
}

// AlternateOpenAI is Alternate for go-openai messages. Fields other than role
// and content are preserved on the original messages; fillers carry only a
// role and content.
func AlternateOpenAI(msgs []openai.ChatCompletionMessage, fillers Fillers) ([]openai.ChatCompletionMessage, error) {
	return alternate(msgs, fillers,
		func(m openai.ChatCompletionMessage) Role { return Role(m.Role) },
		func(r Role, content string) openai.ChatCompletionMessage {
			return openai.ChatCompletionMessage{Role: string(r), Content: content}
		},
	)
}

func alternate[M any](msgs []M, fillers Fillers, roleOf func(M) Role, newFiller func(Role, string) M) ([]M, error) {
	if fillers == nil {
		fillers = DefaultFillers()
	}

	out := make([]M, 0, len(msgs))
	var previous Role
	for i, msg := range msgs {
		role := roleOf(msg)
		if !role.Valid() {
			return nil, &InvalidRoleError{Role: role, Index: i}
		}
		if role == previous && role != System {
			filler := role.Opposite()
			out = append(out, newFiller(filler, fillers[filler]))
		}
		out = append(out, msg)
		// Only real messages advance the tracker.
		previous = role
	}
	return out, nil
}

// Alternates reports whether msgs already satisfies the guarantee made by
// Alternate: no two consecutive messages share the user or assistant role.
// Invalid roles make it return false.
func Alternates(msgs []ChatMessage) bool {
	var previous Role
	for _, msg := range msgs {
		if !msg.Role.Valid() {
			return false
		}
		if msg.Role == previous && msg.Role != System {
			return false
		}
		previous = msg.Role
	}
	return true
}
