package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the captured outcome of one command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs an external command in dir and captures its output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// CommandError is returned when a command exits non-zero.
type CommandError struct {
	Cmd    string
	Dir    string
	Result Result
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed in %s with exit code %d", e.Cmd, e.Dir, e.Result.ExitCode)
	if out := strings.TrimSpace(e.Result.Stdout); out != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", out)
	}
	if out := strings.TrimSpace(e.Result.Stderr); out != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", out)
	}
	return b.String()
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{Cmd: cmdline, Dir: dir, Result: res}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return res, fmt.Errorf("%s: command not found, is it installed and in your PATH?", name)
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s canceled: %w", cmdline, ctx.Err())
	}
	return res, fmt.Errorf("failed to run %s: %w", cmdline, err)
}
