package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgprobe/internal/fsstate"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Ignore   []string
	ExitCode bool
}

// DiffEntry is one changed path.
type DiffEntry struct {
	Path string `json:"path"` // fsstate.QuotePath form
	Size int64  `json:"size"`
	Dir  bool   `json:"dir,omitempty"`
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Created []DiffEntry `json:"created"`
	Deleted []DiffEntry `json:"deleted"`
	Updated []DiffEntry `json:"updated"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Compare two snapshots",
		Long: `Compare two file trees and list created, deleted and updated paths.

Each argument is a snapshot file written by "pkgprobe snapshot" or a
directory, which is snapshotted on the spot. A file counts as updated
when its size changed.

Examples:
  pkgprobe diff before.json after.json
  pkgprobe diff before.json ./venv --ignore tmp --exit-code`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Ignore, "ignore", nil, "ignore paths with this prefix (repeatable)")
	cmd.Flags().BoolVar(&opts.ExitCode, "exit-code", false, "exit with 1 when there are differences")

	return cmd
}

func runDiff(opts *DiffOptions, before, after string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	start, err := loadState(before)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load "+before, err)
	}
	end, err := loadState(after)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load "+after, err)
	}

	d := fsstate.Diff(start, end, opts.Ignore)
	result := DiffResult{
		Created: diffEntries(d.Created),
		Deleted: diffEntries(d.Deleted),
		Updated: diffEntries(d.Updated),
	}

	if out.JSON() {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		for _, group := range []struct {
			mark    string
			entries []DiffEntry
		}{{"+", result.Created}, {"-", result.Deleted}, {"~", result.Updated}} {
			for _, e := range group.entries {
				name := e.Path
				if e.Dir {
					name += "/"
				}
				fmt.Fprintf(out.Writer, "%s %s (%d)\n", group.mark, name, e.Size)
			}
		}
	}

	if opts.ExitCode && !d.Empty() {
		return NewExitError(ExitFailure, "snapshots differ")
	}
	return nil
}

// loadState takes a snapshot of a directory or loads a snapshot file.
func loadState(path string) (fsstate.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return fsstate.Take(path, fsstate.TakeOptions{})
	}
	return fsstate.LoadSnapshot(path)
}

func diffEntries(es fsstate.Entries) []DiffEntry {
	out := make([]DiffEntry, 0, len(es))
	for _, p := range es.Paths() {
		e := es[p]
		out = append(out, DiffEntry{Path: fsstate.QuotePath(p), Size: e.Size, Dir: e.IsDir})
	}
	return out
}
