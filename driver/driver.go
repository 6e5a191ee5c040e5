// Package driver runs the host side of a benchmark: build the guest
// artifact, execute it, and merge its results with storage metadata.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weiihann/guestbench/harness"
	"github.com/weiihann/guestbench/metadata"
	"github.com/weiihann/guestbench/report"
)

// Spec names the guest to build and how to run it.
type Spec struct {
	Name      string
	SourceDir string
	OutputDir string
	Artifact  string
	Target    harness.Target
	Meter     string
	SkipBuild bool
}

// Builder produces a guest artifact.
type Builder interface {
	Build(ctx context.Context, cfg harness.BuildConfig) (string, error)
}

// Driver sequences build, execution and reporting.
type Driver struct {
	Builder  Builder
	Executor harness.Executor
	Logger   *slog.Logger
}

// New wires the go tool builder and the executor for spec.Target.
func New(logger *slog.Logger, spec Spec) (*Driver, error) {
	exec, err := harness.NewExecutor(spec.Target, spec.Name, spec.Meter, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{
		Builder:  harness.NewGoBuilder(logger),
		Executor: exec,
		Logger:   logger,
	}, nil
}

// RunAll builds the guest (unless skipped), runs it once and merges the
// result list with infos. A build or execution failure is returned as is
// and no report is produced.
func (d *Driver) RunAll(
	ctx context.Context,
	spec Spec,
	infos []metadata.StorageInfo,
) (*report.Report, error) {
	d.Logger.InfoContext(ctx, "starting benchmark",
		slog.String("guest", spec.Name),
		slog.String("target", string(spec.Target)),
		slog.String("meter", spec.Meter),
		slog.Int("storage_infos", len(infos)),
	)

	// Step 1: Build the guest artifact.
	artifact := spec.Artifact
	if artifact == "" {
		artifact = harness.ResolveArtifact(spec.OutputDir, spec.Name, spec.Target)
	}

	if !spec.SkipBuild {
		built, err := d.Builder.Build(ctx, harness.BuildConfig{
			Name:      spec.Name,
			SourceDir: spec.SourceDir,
			OutputDir: spec.OutputDir,
			Target:    spec.Target,
		})
		if err != nil {
			return nil, err
		}

		artifact = built
	}

	// Step 2: Invoke the guest entrypoint.
	out, err := d.Executor.Run(ctx, artifact)
	if err != nil {
		return nil, err
	}

	d.Logger.InfoContext(ctx, "guest results collected",
		slog.Int("results", len(out.Results)),
		slog.String("unit", out.Unit),
	)

	// Step 3: Merge with metadata.
	return report.Merge(out, infos), nil
}

// RunAll is the one-shot form of Driver.RunAll with the default wiring.
func RunAll(
	ctx context.Context,
	logger *slog.Logger,
	spec Spec,
	infos []metadata.StorageInfo,
) (*report.Report, error) {
	d, err := New(logger, spec)
	if err != nil {
		return nil, fmt.Errorf("set up driver: %w", err)
	}

	return d.RunAll(ctx, spec, infos)
}
