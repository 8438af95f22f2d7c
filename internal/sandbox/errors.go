package sandbox

import (
	"errors"
	"fmt"
)

// ErrLayoutEscapesRoot means the provisioner returned a library directory
// outside the sandbox root.
var ErrLayoutEscapesRoot = errors.New("provisioned library directory is outside the sandbox root")

// ErrNoProvisioner is returned by New when Options.Provisioner is nil.
var ErrNoProvisioner = errors.New("no provisioner configured")

// ProbeMismatchError means the interpreter found on the sandbox PATH is not
// the one the provisioner created.
type ProbeMismatchError struct {
	Got  string
	Want string
}

func (e *ProbeMismatchError) Error() string {
	return fmt.Sprintf("interpreter on PATH runs %q rather than expected %q", e.Got, e.Want)
}

// SetupError wraps a failure in one construction step.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("sandbox setup (%s): %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
