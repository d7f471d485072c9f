package main

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/fisher/internal/cli"
)

// Build-time version injection via ldflags.
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	root := cli.BuildCLI()
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
