package main

import (
	"errors"
	"fmt"

	"github.com/coder/lazyllm"
	"github.com/coder/lazyllm/ai"
	"github.com/coder/serpent"
)

type normalizeOptions struct {
	fillerUser      string
	fillerAssistant string
	format          string
	diff            bool
	check           bool
}

func (o normalizeOptions) fillers() ai.Fillers {
	return ai.Fillers{
		ai.User:      o.fillerUser,
		ai.Assistant: o.fillerAssistant,
	}
}

func fillerOptions(o *normalizeOptions) serpent.OptionSet {
	return serpent.OptionSet{
		{
			Name:        "filler-user",
			Description: "Content of user messages inserted between two assistant messages.",
			Flag:        "filler-user",
			Value:       serpent.StringOf(&o.fillerUser),
		},
		{
			Name:        "filler-assistant",
			Description: "Content of assistant messages inserted between two user messages.",
			Flag:        "filler-assistant",
			Value:       serpent.StringOf(&o.fillerAssistant),
		},
		{
			Name:          "format",
			Description:   "Conversation format. Detected from the file extension when unset.",
			Flag:          "format",
			FlagShorthand: "f",
			Value:         serpent.EnumOf(&o.format, string(lazyllm.FormatJSON), string(lazyllm.FormatYAML)),
		},
	}
}

func normalizeCmd() *serpent.Command {
	var opts normalizeOptions
	return &serpent.Command{
		Use:   "normalize [file]",
		Short: "Insert filler messages so user and assistant messages alternate.",
		Long: "Reads a JSON or YAML list of {role, content} messages from file or stdin " +
			"and prints it with a filler message between any two consecutive user or " +
			"assistant messages. System messages are left alone.",
		Middleware: serpent.RequireRangeArgs(0, 1),
		Handler: func(inv *serpent.Invocation) error {
			return normalize(inv, argOrEmpty(inv), opts)
		},
		Options: append(fillerOptions(&opts),
			serpent.Option{
				Name:        "diff",
				Description: "Print a unified diff against the input instead of the result.",
				Flag:        "diff",
				Value:       serpent.BoolOf(&opts.diff),
			},
			serpent.Option{
				Name:        "check",
				Description: "Exit with an error if the conversation does not already alternate.",
				Flag:        "check",
				Value:       serpent.BoolOf(&opts.check),
			},
		),
	}
}

var errNotAlternating = errors.New("conversation does not alternate")

func normalize(inv *serpent.Invocation, path string, opts normalizeOptions) error {
	msgs, format, err := readConversation(inv, path, opts.format)
	if err != nil {
		return err
	}

	out, err := ai.Alternate(msgs, opts.fillers())
	if err != nil {
		return err
	}
	debugf("inserted %d filler messages", len(out)-len(msgs))

	if opts.check {
		if !ai.Alternates(msgs) {
			return fmt.Errorf("%s: %w", displayPath(path), errNotAlternating)
		}
		return nil
	}

	if opts.diff {
		diff, err := lazyllm.DiffConversations(msgs, out)
		if err != nil {
			return err
		}
		_, err = inv.Stdout.Write([]byte(diff))
		return err
	}

	return lazyllm.WriteConversation(inv.Stdout, format, out)
}
