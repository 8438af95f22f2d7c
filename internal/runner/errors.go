package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOutsideRoot is returned before anything runs when the working
// directory is not the root or one of its descendants.
var ErrOutsideRoot = errors.New("working directory is outside the sandbox root")

// LaunchError means the executable could not be found or started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NonZeroExitError is returned when the process exits with a nonzero status
// and the caller did not expect an error. Result is fully populated.
type NonZeroExitError struct {
	Result *Result
}

func (e *NonZeroExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with code %d", e.Result.CommandLine(), e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\n-- stderr --\n%s", stderr)
	}
	return b.String()
}

// TimeoutError is returned when the process did not exit within the
// allotted time. The whole process group has been killed.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
}

// LeftoverTempError is returned when the process left files in the
// temp-capture directory. Paths are relative to the sandbox root.
type LeftoverTempError struct {
	Paths  []string
	Result *Result
}

func (e *LeftoverTempError) Error() string {
	return fmt.Sprintf("%s left temporary files: %s",
		e.Result.CommandLine(), strings.Join(e.Paths, ", "))
}
