package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/coder/lazyllm/ai"
	"github.com/coder/pretty"
	"github.com/coder/serpent"
	"github.com/sashabaranov/go-openai"
)

// modelClient is the handle chat sends requests through. Tests swap it for a
// fresh one.
var modelClient = ai.Default

type chatOptions struct {
	normalizeOptions
	model     string
	cliKey    string
	doSaveKey bool
	verbose   bool
}

// settings derives the client overrides from the command line.
func (o chatOptions) settings() ai.Settings {
	s := ai.DefaultSettings()
	if o.verbose {
		s.Verbose = true
		s.SuppressDebugInfo = false
	}
	if o.verbose || debugMode {
		s.DebugLogging = true
	}
	return s
}

func chatCmd() *serpent.Command {
	var opts chatOptions
	return &serpent.Command{
		Use:        "chat [file]",
		Short:      "Normalize a conversation and stream the model's reply.",
		Middleware: serpent.RequireRangeArgs(0, 1),
		Handler: func(inv *serpent.Invocation) error {
			key, err := resolveKey(inv, opts.cliKey)
			if err != nil {
				return err
			}

			if opts.doSaveKey {
				if err := saveKey(opts.cliKey); err != nil {
					return err
				}
				kp, err := keyPath()
				if err != nil {
					return err
				}
				fmt.Fprintf(inv.Stdout, "Saved OpenAI API key to %s\n", kp)
				return nil
			}

			if key == "" {
				return errors.New("$OPENAI_API_KEY is not set")
			}
			// The handle reads its key from the environment on first use.
			if err := os.Setenv("OPENAI_API_KEY", key); err != nil {
				return err
			}

			settings := opts.settings()
			level := slog.LevelInfo
			if settings.DebugLogging {
				level = slog.LevelDebug
			}
			err = modelClient.Reconfigure(
				ai.WithSettings(settings),
				ai.WithLogger(slog.Make(sloghuman.Sink(inv.Stderr)).Named("lazyllm").Leveled(level)),
			)
			if err != nil {
				return err
			}
			return chat(inv, argOrEmpty(inv), opts)
		},
		Options: append(fillerOptions(&opts.normalizeOptions),
			serpent.Option{
				Name:        "openai-key",
				Description: "The OpenAI API key to use.",
				Env:         "OPENAI_API_KEY",
				Flag:        "openai-key",
				Value:       serpent.StringOf(&opts.cliKey),
			},
			serpent.Option{
				Name:        "save-key",
				Description: "Save the OpenAI API key to persistent local configuration and exit.",
				Flag:        "save-key",
				Value:       serpent.BoolOf(&opts.doSaveKey),
			},
			serpent.Option{
				Name:          "model",
				Description:   "The model to use, e.g. gpt-4o or gpt-4o-mini.",
				Flag:          "model",
				FlagShorthand: "m",
				Default:       "gpt-4o-2024-08-06",
				Env:           "LAZYLLM_MODEL",
				Value:         serpent.StringOf(&opts.model),
			},
			serpent.Option{
				Name:          "verbose",
				Description:   "Log every model request and the context of failed ones.",
				Flag:          "verbose",
				FlagShorthand: "v",
				Value:         serpent.BoolOf(&opts.verbose),
			},
		),
	}
}

func chat(inv *serpent.Invocation, path string, opts chatOptions) error {
	conv, _, err := readConversation(inv, path, opts.format)
	if err != nil {
		return err
	}
	if len(conv) == 0 {
		return fmt.Errorf("%s: conversation is empty", displayPath(path))
	}

	msgs, err := ai.AlternateOpenAI(ai.OpenAI(conv), opts.fillers())
	if err != nil {
		return err
	}
	debugConversation(ai.FromOpenAI(msgs))

	ctx := inv.Context()
	stream, err := modelClient.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:  opts.model,
		Stream: true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
		Messages: msgs,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	// Sky blue color
	color := pretty.FgColor(colorProfile.Color("#2FA8FF"))

	var replyLen int
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				debugf("stream EOF")
				break
			}
			return err
		}
		// Usage is only sent in the last message.
		if resp.Usage != nil {
			debugf("total tokens: %d", resp.Usage.TotalTokens)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		c := resp.Choices[0].Delta.Content
		replyLen += len(c)
		pretty.Fprintf(inv.Stdout, color, "%s", c)
	}
	_, err = inv.Stdout.Write([]byte("\n"))
	debugf("reply is %d bytes", replyLen)
	return err
}
