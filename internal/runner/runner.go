// Package runner executes external commands for the coordinator and the
// sync launcher. It separates "the process ran and exited nonzero" (a
// Result with a nonzero ExitCode, no error) from "the process could not be
// started at all" (an error).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result holds the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the process exited with code 0.
func (r *Result) Ok() bool { return r.ExitCode == 0 }

// Runner runs external commands. The interface exists so the coordinator
// and launcher can be tested without spawning real processes.
type Runner interface {
	// Run executes the command in dir and blocks until it exits. A nonzero
	// exit code is reported through the Result, not as an error; the error
	// return is reserved for launch failures.
	Run(ctx context.Context, dir, name string, args ...string) (*Result, error)

	// Start launches the command in dir and returns immediately. onExit is
	// invoked exactly once when the process terminates, regardless of exit
	// code. The error return is reserved for launch failures, in which case
	// onExit is never called.
	Start(dir, name string, args []string, onExit func(*Result)) error
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// New returns a new ExecRunner.
func New() *ExecRunner {
	return &ExecRunner{}
}

func (e *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	return res, nil
}

func (e *ExecRunner) Start(dir, name string, args []string, onExit func(*Result)) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	go func() {
		err := cmd.Wait()
		res := &Result{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if err != nil {
			// Wait failures without an exit code (I/O errors) are treated
			// as a generic nonzero exit.
			res.ExitCode = -1
			res.Stderr = err.Error()
		}
		onExit(res)
	}()
	return nil
}

// IsLaunchFailure reports whether err came from failing to start a process
// (executable missing, not runnable) rather than from the process itself.
func IsLaunchFailure(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) || errors.Is(err, exec.ErrNotFound)
}

// Line returns the first line of s with surrounding whitespace trimmed,
// for embedding process output in single-line warnings.
func Line(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
