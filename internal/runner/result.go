package runner

import (
	"strings"
	"time"

	"github.com/roach88/pkgprobe/internal/fsstate"
)

// Result is the outcome of one command.
type Result struct {
	Command  string
	Args     []string
	Dir      string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	Created fsstate.Entries
	Deleted fsstate.Entries
	Updated fsstate.Entries

	Before fsstate.Snapshot
	After  fsstate.Snapshot
}

// CommandLine renders the argv for messages. It is never executed.
func (r *Result) CommandLine() string {
	return strings.Join(append([]string{r.Command}, r.Args...), " ")
}
