// Package command runs external tools and captures their output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Cmd describes one invocation of an external tool.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

// String renders the invocation for logs.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands and returns their standard output.
// A non-zero exit is reported as *ExitError.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) ([]byte, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
	Stdout []byte
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Cmd, e.Code, msg)
}

// ExitCode returns the exit code carried by err, or -1 when the command
// did not run to completion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// Exec runs commands with os/exec.
type Exec struct{}

// Run blocks until the command exits.
func (Exec) Run(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...) // #nosec G204 -- tool and args are built by this program
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{
			Cmd:    c.String(),
			Code:   exitErr.ExitCode(),
			Stderr: stderr.String(),
			Stdout: stdout.Bytes(),
		}
	}
	return nil, fmt.Errorf("run %s: %w", c.Name, err)
}
