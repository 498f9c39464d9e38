package main

import (
	"fmt"
	"os"

	"github.com/ollamastack/ollamastack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// silentExitError has an empty message. It signals failure without
		// printing (the command already reported the error, e.g. via JSON
		// output on stdout). Only print when the message is non-empty.
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}
