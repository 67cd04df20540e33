package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout is the policy evaluation timeout.
const DefaultTimeout = 5 * time.Minute

// DefaultQuery is the OPA rule that produces the verdict document.
const DefaultQuery = "data.dast.evaluation"

// ExecFunc is the signature for running a command and capturing stdout.
// It receives the context, binary path, and args. Returns stdout bytes and error.
// A failed process should surface as *exec.ExitError so stderr is kept.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandExec runs the command with os/exec, capturing stdout (and stderr
// inside *exec.ExitError on failure).
func CommandExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// EvalError describes a failed policy engine invocation.
type EvalError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("policy evaluation failed (exit code %d): %v", e.ExitCode, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Config describes how to invoke OPA.
type Config struct {
	Binary  string
	Query   string
	Timeout time.Duration
}

// Runner executes `opa eval` and returns its raw JSON output.
type Runner struct {
	execFn ExecFunc
	config Config
}

// New creates a Runner with the given exec function.
func New(execFn ExecFunc, config Config) *Runner {
	if config.Query == "" {
		config.Query = DefaultQuery
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Runner{
		execFn: execFn,
		config: config,
	}
}

// Args builds the opa eval argument list.
func (r *Runner) Args(inputPath, policyDir string) []string {
	return []string{
		"eval",
		"--format", "json",
		"--input", inputPath,
		"--data", policyDir,
		r.config.Query,
	}
}

// Eval evaluates the configured query against an input document and a
// policy directory. Any failure is returned as *EvalError.
func (r *Runner) Eval(ctx context.Context, inputPath, policyDir string) ([]byte, error) {
	evalCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	args := r.Args(inputPath, policyDir)
	stdout, err := r.execFn(evalCtx, r.config.Binary, args...)
	if err == nil {
		return stdout, nil
	}

	evalErr := &EvalError{
		Command:  append([]string{r.config.Binary}, args...),
		ExitCode: -1,
		Stdout:   string(stdout),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		evalErr.ExitCode = exitErr.ExitCode()
		evalErr.Stderr = string(exitErr.Stderr)
	}
	if errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
		evalErr.Err = fmt.Errorf("timed out after %s: %w", r.config.Timeout, err)
	}

	return nil, evalErr
}

// CommandLine renders the command for diagnostics.
func (e *EvalError) CommandLine() string {
	return strings.Join(e.Command, " ")
}
