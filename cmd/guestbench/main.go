// Package main provides the CLI entry point for guestbench, a benchmark
// harness for code running inside a sandboxed guest.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/weiihann/guestbench/bencher"
	"github.com/weiihann/guestbench/driver"
	"github.com/weiihann/guestbench/harness"
	"github.com/weiihann/guestbench/metadata"
	"github.com/weiihann/guestbench/report"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guestbench",
		Short: "Benchmark harness for sandboxed guest code",
		Long: `Guestbench builds a guest program, runs its registered benchmark cases
inside the guest (a WASI module or a native subprocess), collects the resource
units each measured step consumed, and reports them alongside storage metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())

	return root
}

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a guest and run its benchmarks",
		Long: `Build the guest program, invoke its benchmark entrypoint once and
print a report. Flags may also be set through GUESTBENCH_* environment
variables or a config file given with --config.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := runConfigFrom(v)

			logger, closeLog := newLogger(cfg)
			defer closeLog()

			return runBenchmark(cmd.Context(), logger, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("guest", "guests/demo",
		"Path to the guest program's source directory")
	flags.String("name", "",
		"Guest name (default: base name of --guest)")
	flags.String("target", string(harness.TargetNative),
		"Guest target: native or wasm")
	flags.String("meter", "",
		"Guest meter: instructions, cpu, clock for native; host, clock for wasm (default: best available)")
	flags.String("metadata", "",
		"Storage metadata file (.json, .yaml, .toml)")
	flags.String("out-dir", "bin",
		"Directory for built guest artifacts")
	flags.String("artifact", "",
		"Path to a pre-built guest artifact")
	flags.Bool("skip-build", false,
		"Skip building the guest artifact")
	flags.Bool("json", false,
		"Output results as JSON instead of tables")
	flags.String("config", "",
		"Config file (any format viper reads)")
	flags.String("log-file", "",
		"Also write logs to this file, rotated by size")
	flags.Bool("verbose", false,
		"Enable debug logging")

	return cmd
}

type runConfig struct {
	guest        string
	name         string
	target       string
	meter        string
	metadataPath string
	outDir       string
	artifact     string
	skipBuild    bool
	outputJSON   bool
	logFile      string
	verbose      bool
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("GUESTBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return nil
}

func runConfigFrom(v *viper.Viper) runConfig {
	return runConfig{
		guest:        v.GetString("guest"),
		name:         v.GetString("name"),
		target:       v.GetString("target"),
		meter:        v.GetString("meter"),
		metadataPath: v.GetString("metadata"),
		outDir:       v.GetString("out-dir"),
		artifact:     v.GetString("artifact"),
		skipBuild:    v.GetBool("skip-build"),
		outputJSON:   v.GetBool("json"),
		logFile:      v.GetString("log-file"),
		verbose:      v.GetBool("verbose"),
	}
}

func newLogger(cfg runConfig) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}

	if cfg.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.logFile,
			MaxSize:    10,
			MaxBackups: 3,
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closeLog = func() { rotator.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})), closeLog
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
	stdout io.Writer,
) error {
	spec, err := specFrom(cfg)
	if err != nil {
		return err
	}

	// Step 1: Load storage metadata.
	var infos []metadata.StorageInfo
	if cfg.metadataPath != "" {
		infos, err = metadata.Load(cfg.metadataPath)
		if err != nil {
			return err
		}

		logger.DebugContext(ctx, "metadata loaded",
			slog.String("path", cfg.metadataPath),
			slog.Int("entries", len(infos)),
		)
	}

	// Step 2: Build, run and merge.
	rep, err := driver.RunAll(ctx, logger, spec, infos)
	if err != nil {
		logger.ErrorContext(ctx, "benchmark failed",
			slog.String("guest", spec.Name),
			slog.String("error", err.Error()),
		)

		return err
	}

	// Step 3: Generate report.
	if cfg.outputJSON {
		if err := report.GenerateJSON(stdout, rep); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(stdout, rep); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}

func specFrom(cfg runConfig) (driver.Spec, error) {
	target, err := harness.ParseTarget(cfg.target)
	if err != nil {
		return driver.Spec{}, err
	}

	if err := checkMeter(target, cfg.meter); err != nil {
		return driver.Spec{}, err
	}

	if cfg.guest == "" && cfg.artifact == "" {
		return driver.Spec{}, fmt.Errorf(
			"a guest must be specified via --guest or --artifact",
		)
	}

	name := cfg.name
	if name == "" {
		name = guestName(cfg)
	}

	guestDir := cfg.guest
	if guestDir != "" {
		guestDir, err = filepath.Abs(guestDir)
		if err != nil {
			return driver.Spec{}, fmt.Errorf("resolve guest dir: %w", err)
		}
	}

	return driver.Spec{
		Name:      name,
		SourceDir: guestDir,
		OutputDir: cfg.outDir,
		Artifact:  cfg.artifact,
		Target:    target,
		Meter:     cfg.meter,
		SkipBuild: cfg.skipBuild || cfg.artifact != "",
	}, nil
}

// checkMeter rejects meters a wasm guest cannot open. Native meters depend
// on the guest's platform and are checked by the guest itself.
func checkMeter(target harness.Target, meter string) error {
	if target != harness.TargetWasm {
		return nil
	}

	switch meter {
	case "", bencher.MeterHost, bencher.MeterClock:
		return nil
	default:
		return fmt.Errorf("meter %q is not available to wasm guests (want %s or %s)",
			meter, bencher.MeterHost, bencher.MeterClock)
	}
}

func guestName(cfg runConfig) string {
	if cfg.artifact != "" && cfg.guest == "" {
		base := filepath.Base(cfg.artifact)

		return strings.TrimSuffix(strings.TrimSuffix(base, ".wasm"), "-guest")
	}

	return filepath.Base(filepath.Clean(cfg.guest))
}
