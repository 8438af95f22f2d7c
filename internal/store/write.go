package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pkgprobe/internal/harness"
)

// RecordRun stores one scenario execution, its commands and their file
// changes in a single transaction, and returns the new run id. The run's
// digest is TraceDigest of its canonical trace.
func (s *Store) RecordRun(ctx context.Context, scenario string, res *harness.Result) (string, error) {
	runID := s.ids.Generate()

	errorsJSON, err := marshalStrings(res.Errors)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	trace, err := harness.MarshalTrace(scenario, res)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pass, errors, digest, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, scenario, res.Pass, errorsJSON, TraceDigest(trace), startedAt(runID))
	if err != nil {
		return "", fmt.Errorf("record run: insert run: %w", err)
	}

	for seq, step := range res.Trace {
		if err := writeCommand(ctx, tx, runID, seq, step); err != nil {
			return "", fmt.Errorf("record run: step %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return runID, nil
}

func writeCommand(ctx context.Context, tx *sql.Tx, runID string, seq int, step harness.TraceStep) error {
	argvJSON, err := marshalStrings(step.Run)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO commands (run_id, seq, argv, cwd, exit_code, stdout, stderr, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, seq, argvJSON, step.Cwd, step.ExitCode, step.Stdout, step.Stderr, step.Failure)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	commandID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("command id: %w", err)
	}

	kinds := []struct {
		kind  string
		paths []string
	}{
		{ChangeCreated, step.Created},
		{ChangeDeleted, step.Deleted},
		{ChangeUpdated, step.Updated},
	}
	for _, k := range kinds {
		for _, p := range k.paths {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO changes (command_id, kind, path, size)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, commandID, k.kind, p, step.Sizes[p])
			if err != nil {
				return fmt.Errorf("insert change %s %s: %w", k.kind, p, err)
			}
		}
	}
	return nil
}

// startedAt renders the timestamp embedded in a UUIDv7 run id, or the
// current time for ids of any other form.
func startedAt(runID string) string {
	t := time.Now()
	if id, err := uuid.Parse(runID); err == nil && id.Version() == 7 {
		sec, nsec := id.Time().UnixTime()
		t = time.Unix(sec, nsec)
	}
	return t.UTC().Format(time.RFC3339Nano)
}
