// Package process runs external programs (blastp, makeblastdb, the structure
// helper) behind an interface so callers can be tested without the binaries.
package process

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
)

// Command describes one external program invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec.  Cancelling ctx kills the process.
type ExecRunner struct{}

// NewExecRunner returns the os/exec backed Runner.
func NewExecRunner() ExecRunner { return ExecRunner{} }

// Run starts cmd and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}

// Binary resolves a program name against an optional directory.  An empty
// dir leaves name to be found on PATH.
func Binary(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) error { return f(ctx, cmd) }
