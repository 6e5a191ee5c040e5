package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// BuildConfig describes how to build the artifact for a guest program.
type BuildConfig struct {
	Name      string
	SourceDir string
	OutputDir string
	Target    Target
}

// ResolveArtifact returns the expected artifact path for a guest given the
// output directory.
func ResolveArtifact(outputDir, name string, target Target) string {
	switch target {
	case TargetWasm:
		return filepath.Join(outputDir, name+".wasm")
	default:
		return filepath.Join(outputDir, name+"-guest")
	}
}

// GoBuilder compiles guest programs with the go tool.
type GoBuilder struct {
	GoBin  string
	Logger *slog.Logger
}

// NewGoBuilder returns a GoBuilder using the go binary on PATH.
func NewGoBuilder(logger *slog.Logger) *GoBuilder {
	return &GoBuilder{GoBin: "go", Logger: logger}
}

// Build compiles the guest in cfg.SourceDir and returns the artifact path.
// Compiler output is carried by the returned *BuildError.
func (g *GoBuilder) Build(ctx context.Context, cfg BuildConfig) (string, error) {
	outDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return "", &BuildError{Guest: cfg.Name, Err: fmt.Errorf("resolve output dir: %w", err)}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &BuildError{Guest: cfg.Name, Err: fmt.Errorf("create output dir: %w", err)}
	}

	artifact := ResolveArtifact(outDir, cfg.Name, cfg.Target)

	g.Logger.InfoContext(ctx, "building guest",
		slog.String("guest", cfg.Name),
		slog.String("source_dir", cfg.SourceDir),
		slog.String("target", string(cfg.Target)),
	)

	cmd, err := g.command(ctx, cfg, artifact)
	if err != nil {
		return "", &BuildError{Guest: cfg.Name, Err: err}
	}

	var log bytes.Buffer
	cmd.Stdout = &log
	cmd.Stderr = &log

	if err := cmd.Run(); err != nil {
		return "", &BuildError{Guest: cfg.Name, Log: log.String(), Err: err}
	}

	if _, err := os.Stat(artifact); err != nil {
		return "", &BuildError{
			Guest: cfg.Name,
			Err:   fmt.Errorf("artifact not found at %s", artifact),
		}
	}

	g.Logger.InfoContext(ctx, "guest built",
		slog.String("guest", cfg.Name),
		slog.String("artifact", artifact),
	)

	return artifact, nil
}

func (g *GoBuilder) command(
	ctx context.Context,
	cfg BuildConfig,
	artifact string,
) (*exec.Cmd, error) {
	if cfg.SourceDir == "" {
		return nil, errors.New("no guest source directory")
	}

	goBin := g.GoBin
	if goBin == "" {
		goBin = "go"
	}

	cmd := exec.CommandContext(ctx, goBin, "build", "-o", artifact, ".")
	cmd.Dir = cfg.SourceDir
	cmd.Env = os.Environ()

	switch cfg.Target {
	case TargetNative:
	case TargetWasm:
		cmd.Env = append(cmd.Env, "GOOS=wasip1", "GOARCH=wasm")
	default:
		return nil, fmt.Errorf("unknown target %q", cfg.Target)
	}

	return cmd, nil
}
