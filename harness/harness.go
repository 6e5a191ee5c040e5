package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/weiihann/guestbench/bencher"
)

// Executor runs a built guest artifact and returns its result list.
type Executor interface {
	Run(ctx context.Context, artifact string) (*Output, error)
}

// NewExecutor returns the executor matching target.
func NewExecutor(
	target Target,
	name, meter string,
	logger *slog.Logger,
) (Executor, error) {
	switch target {
	case TargetNative:
		return NewRunner(name, meter, nil, nil, logger), nil
	case TargetWasm:
		return NewWasmRunner(name, meter, logger), nil
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
}

// Runner launches a native guest artifact as a subprocess. The guest's
// result list is read from its stdout and any diagnostic from a file passed
// as descriptor 3.
type Runner struct {
	Name      string
	Meter     string
	ExtraArgs []string
	Env       []string
	Logger    *slog.Logger
}

// NewRunner creates a Runner for the named guest. Env is appended to the
// inherited environment.
func NewRunner(
	name, meter string,
	extraArgs, env []string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Name:      name,
		Meter:     meter,
		ExtraArgs: extraArgs,
		Env:       env,
		Logger:    logger.With(slog.String("guest", name)),
	}
}

// Run executes the guest artifact and returns its parsed output.
func (r *Runner) Run(ctx context.Context, artifact string) (*Output, error) {
	diag, err := os.CreateTemp("", "guestbench-diag-*")
	if err != nil {
		return nil, &ExecutionError{Guest: r.Name, Err: fmt.Errorf("create diagnostic file: %w", err)}
	}
	defer os.Remove(diag.Name())
	defer diag.Close()

	cmd := exec.CommandContext(ctx, artifact, r.ExtraArgs...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Env = append(cmd.Env,
		bencher.EnvGuestMeter+"="+r.Meter,
		bencher.EnvGuestPanicFD+"=3",
	)
	cmd.ExtraFiles = []*os.File{diag}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.InfoContext(ctx, "starting guest",
		slog.String("artifact", artifact),
		slog.String("meter", r.Meter),
	)

	wallStart := time.Now()
	runErr := cmd.Run()
	wallElapsed := time.Since(wallStart)

	msg, err := readDiagnostic(diag)
	if err != nil {
		r.Logger.WarnContext(ctx, "failed to read guest diagnostic",
			slog.String("error", err.Error()),
		)
	}

	if runErr != nil || msg != "" {
		return nil, r.executionError(runErr, msg, stderr.String())
	}

	r.Logger.InfoContext(ctx, "guest finished",
		slog.Duration("wall_time", wallElapsed),
	)

	out, err := parseOutput(r.Name, &stdout)
	if err != nil {
		return nil, &ExecutionError{
			Guest:   r.Name,
			Message: stdout.String(),
			Err:     fmt.Errorf("parse output: %w", err),
		}
	}

	out.Target = TargetNative
	out.WallTime = wallElapsed

	return out, nil
}

func (r *Runner) executionError(runErr error, msg, stderr string) *ExecutionError {
	e := &ExecutionError{Guest: r.Name, Message: msg, Err: runErr}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}

	if e.Message == "" {
		e.Message = strings.TrimSpace(stderr)
	}

	if e.Err == nil {
		e.Err = errors.New("guest reported a failure")
	}

	return e
}

func readDiagnostic(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek diagnostic file: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read diagnostic file: %w", err)
	}

	return string(data), nil
}

func parseOutput(guest string, r io.Reader) (*Output, error) {
	out, err := bencher.ReadOutput(r)
	if err != nil {
		return nil, err
	}

	return &Output{
		Guest:   guest,
		Unit:    out.Unit,
		Results: out.Results,
	}, nil
}
