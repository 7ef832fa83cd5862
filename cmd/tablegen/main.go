// tablegen generates descriptor tables and rewrite-rule matchers.
//
// Usage:
//
//	tablegen generate [root] [--dry-run] [--force]   Generate every changed document
//	tablegen validate [root]                         Check every document, write nothing
//	tablegen watch [root] [--debounce 300ms]         Regenerate documents as they change
//	tablegen expand <pattern> --ops <document>       Print the permutations of a pattern
//
// Settings are read from tablegen.yaml in the working directory, or from
// the file named by --config.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/can1357/retro/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own failures; anything else is printed here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
