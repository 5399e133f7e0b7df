package main

import (
	"fmt"
	"runtime"

	"github.com/coder/serpent"
)

// Version is set during build using ldflags
var Version = "dev"

func versionCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "version",
		Short: "Print build version information.",
		Handler: func(inv *serpent.Invocation) error {
			fmt.Fprintf(inv.Stdout, "lazyllm %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
