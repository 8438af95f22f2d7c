package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pkgprobe/internal/harness"
	"github.com/roach88/pkgprobe/internal/store"
)

// recordedDB creates a database holding one passing and one failing run.
func recordedDB(t *testing.T) (path, passID, failID string) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ok := harness.NewResult()
	ok.AddStep(harness.TraceStep{
		Run:     []string{"pip", "install", "Foo"},
		Created: []string{"scratch/src/foo"},
		Deleted: []string{},
		Updated: []string{"env/easy-install.pth"},
		Stdout:  "Successfully installed Foo\n",
		Sizes:   map[string]int64{"env/easy-install.pth": 12},
	})
	passID, err = st.RecordRun(context.Background(), "install", ok)
	require.NoError(t, err)

	bad := harness.NewResult()
	bad.AddStep(harness.TraceStep{Run: []string{"pip", "fail"}, ExitCode: 1, Failure: "pip exited with code 1"})
	bad.AddError("steps[0]: pip exited with code 1")
	failID, err = st.RecordRun(context.Background(), "broken", bad)
	require.NoError(t, err)

	return path, passID, failID
}

func TestTraceCommand_ListRuns(t *testing.T) {
	db, passID, failID := recordedDB(t)

	out, err := execute(t, &RootOptions{}, "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, passID)
	assert.Contains(t, out, failID)
	assert.Regexp(t, passID+`.*PASS\s+install`, out)
	assert.Regexp(t, failID+`.*FAIL\s+broken`, out)
}

func TestTraceCommand_ListRunsFiltered(t *testing.T) {
	db, passID, failID := recordedDB(t)

	out, err := execute(t, &RootOptions{}, "--format", "json", "trace", "--db", db, "--scenario", "broken")
	require.NoError(t, err)

	var resp struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, failID, resp.Data[0].ID)
	assert.NotEqual(t, passID, resp.Data[0].ID)
	assert.False(t, resp.Data[0].Pass)
	assert.Len(t, resp.Data[0].Digest, 64)
	assert.Equal(t, []string{"steps[0]: pip exited with code 1"}, resp.Data[0].Errors)
}

func TestTraceCommand_ShowRun(t *testing.T) {
	db, passID, _ := recordedDB(t)

	out, err := execute(t, &RootOptions{}, "trace", "--db", db, "--run", passID)
	require.NoError(t, err)

	assert.Contains(t, out, "Run "+passID+": install PASS")
	assert.Contains(t, out, "[0] pip install Foo -> exit 0")
	assert.Contains(t, out, "  + scratch/src/foo (0)")
	assert.Contains(t, out, "  ~ env/easy-install.pth (12)")
	assert.NotContains(t, out, "-- stdout --")
}

func TestTraceCommand_ShowRunVerbose(t *testing.T) {
	db, passID, _ := recordedDB(t)

	out, err := execute(t, &RootOptions{}, "-v", "trace", "--db", db, "--run", passID)
	require.NoError(t, err)

	assert.Contains(t, out, "  -- stdout --\n    Successfully installed Foo\n")
}

func TestTraceCommand_ShowRunJSON(t *testing.T) {
	db, _, failID := recordedDB(t)

	out, err := execute(t, &RootOptions{}, "--format", "json", "trace", "--db", db, "--run", failID)
	require.NoError(t, err)

	var resp struct {
		Data RunTrace `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "broken", resp.Data.Run.Scenario)
	require.Len(t, resp.Data.Commands, 1)
	assert.Equal(t, []string{"pip", "fail"}, resp.Data.Commands[0].Argv)
	assert.Equal(t, 1, resp.Data.Commands[0].ExitCode)
	assert.Equal(t, "pip exited with code 1", resp.Data.Commands[0].Failure)
	assert.Empty(t, resp.Data.Commands[0].Changes)
}

func TestTraceCommand_UnknownRun(t *testing.T) {
	db, _, _ := recordedDB(t)

	_, err := execute(t, &RootOptions{}, "trace", "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestTraceCommand_MissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.db")

	_, err := execute(t, &RootOptions{}, "trace", "--db", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
	assert.NoFileExists(t, missing)
}

func TestTraceCommand_EmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, &RootOptions{}, "trace", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}
