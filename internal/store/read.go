package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Change kinds.
const (
	ChangeCreated = "created"
	ChangeDeleted = "deleted"
	ChangeUpdated = "updated"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded scenario execution.
type Run struct {
	ID        string
	Scenario  string
	Pass      bool
	Errors    []string
	Digest    string
	StartedAt string
}

// Command is one executed step of a run.
type Command struct {
	ID       int64
	RunID    string
	Seq      int
	Argv     []string
	Cwd      string
	ExitCode int
	Stdout   string
	Stderr   string
	Failure  string
}

// Change is one file a command created, deleted or updated.
type Change struct {
	CommandID int64  `json:"command_id"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
}

// ListRuns returns recorded runs, oldest first. A non-empty scenario
// restricts the list to that scenario.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `
		SELECT id, scenario, pass, errors, digest, started_at
		FROM runs
	`
	var args []any
	if scenario != "" {
		query += " WHERE scenario = ?"
		args = append(args, scenario)
	}
	query += " ORDER BY id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, pass, errors, digest, started_at
		FROM runs
		WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ReadCommands returns the commands of a run in execution order.
func (s *Store) ReadCommands(ctx context.Context, runID string) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, argv, cwd, exit_code, stdout, stderr, failure
		FROM commands
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	commands := []Command{}
	for rows.Next() {
		var c Command
		var argvJSON string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Seq, &argvJSON, &c.Cwd, &c.ExitCode, &c.Stdout, &c.Stderr, &c.Failure); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if c.Argv, err = unmarshalStrings(argvJSON); err != nil {
			return nil, fmt.Errorf("command %d: %w", c.ID, err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}

// ReadChanges returns the file changes of a command, grouped by kind in
// created, deleted, updated order and sorted by path within each kind.
func (s *Store) ReadChanges(ctx context.Context, commandID int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT command_id, kind, path, size
		FROM changes
		WHERE command_id = ?
		ORDER BY
			CASE kind WHEN 'created' THEN 0 WHEN 'deleted' THEN 1 ELSE 2 END,
			path COLLATE BINARY ASC
	`, commandID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.CommandID, &c.Kind, &c.Path, &c.Size); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var errorsJSON string
	if err := row.Scan(&r.ID, &r.Scenario, &r.Pass, &errorsJSON, &r.Digest, &r.StartedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	list, err := unmarshalStrings(errorsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", r.ID, err)
	}
	r.Errors = list
	return r, nil
}
