// Package tool runs the external ipsw binary.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is one subprocess invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, c Command) error
}

// ExitError is returned when the command exits non-zero or times out.
type ExitError struct {
	Command  string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	var msg string
	switch {
	case e.TimedOut:
		msg = fmt.Sprintf("%s timed out", e.Command)
	case e.ExitCode >= 0:
		msg = fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	default:
		msg = fmt.Sprintf("failed to run %s: %v", e.Command, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exec runs commands with os/exec.
type Exec struct {
	// Timeout bounds each invocation, zero means no limit.
	Timeout time.Duration
	// Passthrough streams the tool's output to the terminal.
	Passthrough bool
}

// stderrTail is how much stderr is kept for error messages.
const stderrTail = 1024

func (e Exec) Run(ctx context.Context, c Command) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.WaitDelay = 10 * time.Second

	var stderr bytes.Buffer
	switch {
	case c.Stdout != nil:
		cmd.Stdout = c.Stdout
	case e.Passthrough:
		cmd.Stdout = os.Stdout
	}
	if e.Passthrough {
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	xerr := &ExitError{
		Command:  c.Name,
		ExitCode: -1,
		Stderr:   tail(stderr.String(), stderrTail),
		Err:      err,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		xerr.TimedOut = true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		xerr.ExitCode = ee.ExitCode()
	}
	return xerr
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, c Command) error

func (f RunnerFunc) Run(ctx context.Context, c Command) error { return f(ctx, c) }
