package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgprobe/internal/fsstate"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Output  string
	Exclude []string
}

// SnapshotSummary is the JSON payload when the snapshot goes to a file.
type SnapshotSummary struct {
	Root    string `json:"root"`
	Output  string `json:"output"`
	Entries int    `json:"entries"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <dir>",
		Short: "Record the file tree under a directory",
		Long: `Record every path under a directory with its size and kind, as
canonical JSON. Symbolic links are recorded, never followed. Two
snapshots can be compared with "pkgprobe diff".

Examples:
  pkgprobe snapshot ./venv -o before.json
  pkgprobe snapshot ./venv --exclude tmp --exclude pip-log.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the snapshot to a file instead of stdout")
	cmd.Flags().StringArrayVar(&opts.Exclude, "exclude", nil, "skip paths with this prefix (repeatable)")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, root string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	snap, err := fsstate.Take(root, fsstate.TakeOptions{Exclude: opts.Exclude})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to take snapshot", err)
	}
	data, err := snap.MarshalCanonical()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode snapshot", err)
	}

	if opts.Output == "" {
		_, err := fmt.Fprintln(out.Writer, string(data))
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}
	summary := SnapshotSummary{Root: root, Output: opts.Output, Entries: len(snap)}
	if out.JSON() {
		return out.Success(summary)
	}
	fmt.Fprintf(out.Writer, "%d entries from %s written to %s\n", summary.Entries, summary.Root, summary.Output)
	return nil
}
