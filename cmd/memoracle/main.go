// Command memoracle verifies that a query engine enforces per-query memory
// limits.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/memoracle/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands print their own errors. Anything else came from cobra
	// (unknown flags, wrong argument counts) and is a usage error.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(cli.ExitCommandError)
}
