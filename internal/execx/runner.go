package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result captures the output of one external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// FailureKind classifies why a command did not succeed.
type FailureKind string

const (
	FailTimeout     FailureKind = "timeout"
	FailNonZeroExit FailureKind = "non_zero_exit"
	FailUnavailable FailureKind = "unavailable"
)

// ExecError is returned by a Runner when a command times out, exits non-zero
// or cannot be spawned at all. Output captured up to the failure point is
// preserved so callers can classify diagnostics.
type ExecError struct {
	Kind   FailureKind
	Argv   []string
	Result Result
	Err    error
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case FailTimeout:
		return fmt.Sprintf("command %q timed out", strings.Join(e.Argv, " "))
	case FailNonZeroExit:
		return fmt.Sprintf("command %q exited with code %d", strings.Join(e.Argv, " "), e.Result.ExitCode)
	default:
		return fmt.Sprintf("command %q unavailable: %v", strings.Join(e.Argv, " "), e.Err)
	}
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// AsExecError unwraps err into an *ExecError if one is present.
func AsExecError(err error) (*ExecError, bool) {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// Runner executes external configuration commands. It is the single effect
// boundary between the agent and the host system; everything above it can be
// exercised against a scripted implementation. Runners never retry — retry
// policy belongs to callers.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, argv ...string) (Result, error)
}

// ExecRunner runs commands via os/exec, one process per call.
type ExecRunner struct{}

// NewExecRunner creates a Runner backed by real process execution.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, &ExecError{Kind: FailUnavailable, Err: errors.New("empty argv")}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if err == nil {
		return res, nil
	}

	if cctx.Err() == context.DeadlineExceeded {
		return res, &ExecError{Kind: FailTimeout, Argv: argv, Result: res, Err: cctx.Err()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExecError{Kind: FailNonZeroExit, Argv: argv, Result: res, Err: err}
	}

	return res, &ExecError{Kind: FailUnavailable, Argv: argv, Result: res, Err: err}
}
