package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/coder/lazyllm"
	"github.com/coder/lazyllm/ai"
	"github.com/coder/pretty"
	"github.com/coder/serpent"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"
)

var colorProfile = termenv.ColorProfile()

func errorf(format string, args ...any) {
	c := pretty.FgColor(colorProfile.Color("#ff0000"))
	pretty.Fprintf(os.Stderr, c, "err: "+format, args...)
}

var debugMode = os.Getenv("LAZYLLM_DEBUG") != ""

func debugf(format string, args ...any) {
	if !debugMode {
		return
	}
	// Gray
	c := pretty.FgColor(colorProfile.Color("#808080"))
	pretty.Fprintf(os.Stderr, c, "debug: "+format+"\n", args...)
}

func debugConversation(msgs []ai.ChatMessage) {
	if !debugMode {
		return
	}
	for _, msg := range msgs {
		debugf("%s (%v tokens): %s", msg.Role, lazyllm.CountTokens(msg), lazyllm.Preview(msg.Content, 200))
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// readConversation reads the conversation at path, or stdin when path is
// empty. format overrides the extension-based detection.
func readConversation(inv *serpent.Invocation, path, format string) ([]ai.ChatMessage, lazyllm.Format, error) {
	f := lazyllm.Format(format)
	var r io.Reader = inv.Stdin
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, f, err
		}
		defer file.Close()
		r = file
		if f == "" {
			f = lazyllm.FormatFor(path)
		}
	}
	if f == "" {
		f = lazyllm.FormatJSON
	}
	msgs, err := lazyllm.ReadConversation(r, f)
	if err != nil {
		return nil, f, fmt.Errorf("read %s: %w", displayPath(path), err)
	}
	return msgs, f, nil
}

func displayPath(path string) string {
	if path == "" {
		return "stdin"
	}
	return path
}

func argOrEmpty(inv *serpent.Invocation) string {
	if len(inv.Args) > 0 {
		return inv.Args[0]
	}
	return ""
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		errorf("load .env: %s\n", err)
		os.Exit(1)
	}
	if err := ai.DefaultEnvironment().Apply(); err != nil {
		errorf("%s\n", err)
		os.Exit(1)
	}

	cmd := &serpent.Command{
		Use:   "lazyllm",
		Short: "lazyllm normalizes conversations and sends them to a chat model.",
		Children: []*serpent.Command{
			normalizeCmd(),
			chatCmd(),
			versionCmd(),
		},
	}

	err := cmd.Invoke().WithOS().Run()
	if err != nil {
		var unknownCmdErr *serpent.UnknownSubcommandError
		if errors.As(err, &unknownCmdErr) {
			// Unknown command is printed by the help function for some reason.
			os.Exit(1)
		}
		var runCommandErr *serpent.RunCommandError
		if errors.As(err, &runCommandErr) {
			errorf("%s\n", runCommandErr.Err)
			os.Exit(1)
		}

		errorf("%s\n", err)
		os.Exit(1)
	}
}
