// Command pkgprobe runs package-manager acceptance scenarios in disposable
// sandboxes and inspects their recorded history.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/pkgprobe/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
