package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Scenario string
}

// RunSummary is one recorded run in a listing.
type RunSummary struct {
	ID        string   `json:"id"`
	Scenario  string   `json:"scenario"`
	Pass      bool     `json:"pass"`
	Digest    string   `json:"digest"`
	StartedAt string   `json:"started_at"`
	Errors    []string `json:"errors,omitempty"`
}

// CommandTrace is one recorded command with its file changes.
type CommandTrace struct {
	Seq      int            `json:"seq"`
	Argv     []string       `json:"argv"`
	Cwd      string         `json:"cwd,omitempty"`
	ExitCode int            `json:"exit_code"`
	Stdout   string         `json:"stdout,omitempty"`
	Stderr   string         `json:"stderr,omitempty"`
	Failure  string         `json:"failure,omitempty"`
	Changes  []store.Change `json:"changes"`
}

// RunTrace is the detail of one recorded run.
type RunTrace struct {
	Run      RunSummary     `json:"run"`
	Commands []CommandTrace `json:"commands"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs",
		Long: `List the runs recorded by "pkgprobe test --db", or show the commands
of one run together with the files each command changed. Runs with the
same trace digest changed the filesystem identically.

Examples:
  pkgprobe trace --db runs.db
  pkgprobe trace --db runs.db --scenario install_editable
  pkgprobe trace --db runs.db --run 0190b7a4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run in detail")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list only runs of this scenario")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(cmd, opts.RootOptions)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.DatabasePath()
	}
	// Opening would create an empty database.
	if _, err := os.Stat(dbPath); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, out)
	}
	return showRun(ctx, st, opts.RunID, out)
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, out *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarize(r)
	}

	if out.JSON() {
		return out.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out.Writer, "%s  %s  %s  %s  %s\n", s.ID, s.StartedAt, shortDigest(s.Digest), status(s.Pass), s.Scenario)
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, runID string, out *OutputFormatter) error {
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		if out.JSON() {
			if err := out.Error(CodeRunNotFound, err.Error(), nil); err != nil {
				return err
			}
		}
		return WrapExitError(ExitCommandError, "no such run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	commands, err := st.ReadCommands(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commands", err)
	}

	trace := RunTrace{Run: summarize(run), Commands: make([]CommandTrace, 0, len(commands))}
	for _, c := range commands {
		changes, err := st.ReadChanges(ctx, c.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read changes", err)
		}
		for i := range changes {
			changes[i].Path = fsstate.QuotePath(changes[i].Path)
		}
		trace.Commands = append(trace.Commands, CommandTrace{
			Seq:      c.Seq,
			Argv:     c.Argv,
			Cwd:      c.Cwd,
			ExitCode: c.ExitCode,
			Stdout:   c.Stdout,
			Stderr:   c.Stderr,
			Failure:  c.Failure,
			Changes:  changes,
		})
	}

	if out.JSON() {
		return out.Success(trace)
	}

	w := out.Writer
	fmt.Fprintf(w, "Run %s: %s %s\n", trace.Run.ID, trace.Run.Scenario, status(trace.Run.Pass))
	fmt.Fprintf(w, "  digest %s\n", trace.Run.Digest)
	for _, e := range trace.Run.Errors {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
	}
	for _, c := range trace.Commands {
		fmt.Fprintf(w, "\n[%d] %s", c.Seq, strings.Join(c.Argv, " "))
		if c.Cwd != "" {
			fmt.Fprintf(w, " (in %s)", c.Cwd)
		}
		fmt.Fprintf(w, " -> exit %d\n", c.ExitCode)
		for _, ch := range c.Changes {
			fmt.Fprintf(w, "  %s %s (%d)\n", changeMark(ch.Kind), ch.Path, ch.Size)
		}
		if out.Verbose {
			if c.Stdout != "" {
				fmt.Fprintf(w, "  -- stdout --\n%s", indent(c.Stdout))
			}
			if c.Stderr != "" {
				fmt.Fprintf(w, "  -- stderr --\n%s", indent(c.Stderr))
			}
		}
	}
	return nil
}

func summarize(r store.Run) RunSummary {
	return RunSummary{ID: r.ID, Scenario: r.Scenario, Pass: r.Pass, Digest: r.Digest, StartedAt: r.StartedAt, Errors: r.Errors}
}

// shortDigest abbreviates a trace digest for listings.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func status(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func changeMark(kind string) string {
	switch kind {
	case store.ChangeCreated:
		return "+"
	case store.ChangeDeleted:
		return "-"
	default:
		return "~"
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString("    ")
		b.WriteString(l)
	}
	if !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
