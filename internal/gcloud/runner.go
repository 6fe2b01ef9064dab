package gcloud

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// Runner abstracts execution of the gcloud binary so the probe logic can be
// tested without a Cloud SDK installation.
type Runner interface {
	// Output runs the command and returns its trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// Interactive runs the command attached to the process's terminal,
	// allowing gcloud to open a browser and prompt the user.
	Interactive(ctx context.Context, name string, args ...string) error
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

func (ExecRunner) Interactive(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
