//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dispatch

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/job"
)

// Runner runs jobs.
type Runner interface {
	Run(ctx context.Context, j *job.Job) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, j *job.Job) error

// Run implements Runner.Run.
func (f RunnerFunc) Run(ctx context.Context, j *job.Job) error {
	return f(ctx, j)
}

// ExecRunner writes the job code under CodePath/<job ID>/ and runs
// the job command in that directory.
type ExecRunner struct {
	CodePath string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Dir returns the job's code directory.
func (r *ExecRunner) Dir(j *job.Job) string {
	return filepath.Join(r.CodePath, j.ID)
}

// Run implements Runner.Run.
func (r *ExecRunner) Run(ctx context.Context, j *job.Job) error {
	if len(j.Command) == 0 {
		return errors.Newf("%s: no command", j.ID)
	}
	dir := r.Dir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "%s: code directory", j.ID)
	}
	file := filepath.Join(dir, j.File)
	if err := os.WriteFile(file, []byte(j.Code), 0o644); err != nil {
		return errors.Wrapf(err, "%s: write code", j.ID)
	}

	cmd := exec.CommandContext(ctx, j.Command[0], j.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", j.ID, j.Command[0])
	}
	return nil
}
