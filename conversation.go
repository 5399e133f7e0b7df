// Package lazyllm reads, writes and compares conversations for the lazyllm
// command.
package lazyllm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/coder/lazyllm/ai"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks a format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ReadConversation decodes a list of messages. Roles are not validated here;
// ai.Alternate rejects unknown ones.
func ReadConversation(r io.Reader, f Format) ([]ai.ChatMessage, error) {
	var msgs []ai.ChatMessage
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&msgs); err != nil {
			return nil, fmt.Errorf("decode json conversation: %w", err)
		}
	case FormatYAML:
		err := yaml.NewDecoder(r).Decode(&msgs)
		// An empty document is an empty conversation.
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml conversation: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
	if msgs == nil {
		msgs = []ai.ChatMessage{}
	}
	return msgs, nil
}

func WriteConversation(w io.Writer, f Format, msgs []ai.ChatMessage) error {
	if msgs == nil {
		msgs = []ai.ChatMessage{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(msgs); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func conversationLines(msgs []ai.ChatMessage) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %q\n", m.Role, m.Content))
	}
	return lines
}

// DiffConversations returns a unified diff between two conversations, one
// line per message. It is empty when they are equal.
func DiffConversations(a, b []ai.ChatMessage) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        conversationLines(a),
		B:        conversationLines(b),
		FromFile: "input",
		ToFile:   "normalized",
		Context:  3,
	})
}
