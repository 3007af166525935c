// Command tablebuilder queries statistical subjects and exports the
// results as tables.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/tablebuilder/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
