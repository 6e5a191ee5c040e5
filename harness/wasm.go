package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/weiihann/guestbench/bencher"
)

// WasmRunner executes a WASI guest module inside wazero. The host module
// "bencher" supplies the guest's meter and its diagnostic channel. Meter is
// passed to the guest environment; empty selects the host meter.
type WasmRunner struct {
	Name          string
	Meter         string
	ExtraArgs     []string
	RuntimeConfig wazero.RuntimeConfig
	Logger        *slog.Logger
}

// NewWasmRunner creates a WasmRunner for the named guest.
func NewWasmRunner(name, meter string, logger *slog.Logger) *WasmRunner {
	return &WasmRunner{
		Name:          name,
		Meter:         meter,
		RuntimeConfig: wazero.NewRuntimeConfig(),
		Logger:        logger.With(slog.String("guest", name)),
	}
}

// Run loads the module at artifact and executes it.
func (r *WasmRunner) Run(ctx context.Context, artifact string) (*Output, error) {
	bin, err := os.ReadFile(artifact)
	if err != nil {
		return nil, &ExecutionError{Guest: r.Name, Err: fmt.Errorf("read module: %w", err)}
	}

	return r.RunBinary(ctx, bin)
}

// RunBinary instantiates the module without running its start function,
// then calls the exported entrypoint and decodes what it wrote to stdout.
func (r *WasmRunner) RunBinary(ctx context.Context, bin []byte) (*Output, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, r.RuntimeConfig)
	defer rt.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, r.fail(fmt.Errorf("instantiate WASI: %w", err), "", 0)
	}

	host := newHostEnv()
	if err := host.instantiate(ctx, rt); err != nil {
		return nil, r.fail(fmt.Errorf("instantiate host module: %w", err), "", 0)
	}

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, r.fail(fmt.Errorf("compile module: %w", err), "", 0)
	}

	var stdout, stderr bytes.Buffer

	args := append([]string{r.Name}, r.ExtraArgs...)
	cfg := wazero.NewModuleConfig().
		WithName(r.Name).
		WithArgs(args...).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithEnv(bencher.EnvGuestMeter, r.Meter).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithStartFunctions()

	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, r.fail(fmt.Errorf("instantiate module: %w", err), host.diagnostic(), 0)
	}

	entry := mod.ExportedFunction(bencher.EntrypointExport)
	if entry == nil {
		return nil, r.fail(
			fmt.Errorf("module does not export %s", bencher.EntrypointExport), "", 0,
		)
	}

	r.Logger.InfoContext(ctx, "starting guest",
		slog.Int("module_bytes", len(bin)),
		slog.String("meter", r.Meter),
	)

	wallStart := time.Now()
	_, callErr := entry.Call(ctx)
	wallElapsed := time.Since(wallStart)

	exitCode, callErr := exitStatus(callErr)

	msg := host.diagnostic()
	if callErr != nil || msg != "" {
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}

		if callErr == nil {
			callErr = errors.New("guest reported a failure")
		}

		return nil, r.fail(callErr, msg, exitCode)
	}

	r.Logger.InfoContext(ctx, "guest finished",
		slog.Duration("wall_time", wallElapsed),
	)

	out, err := parseOutput(r.Name, &stdout)
	if err != nil {
		return nil, r.fail(fmt.Errorf("parse output: %w", err), stdout.String(), 0)
	}

	out.Target = TargetWasm
	out.WallTime = wallElapsed

	return out, nil
}

func (r *WasmRunner) fail(err error, msg string, exitCode int) *ExecutionError {
	return &ExecutionError{
		Guest:    r.Name,
		Message:  msg,
		ExitCode: exitCode,
		Err:      err,
	}
}

// exitStatus treats a clean proc_exit(0) as success.
func exitStatus(err error) (int, error) {
	var exitErr *sys.ExitError
	if !errors.As(err, &exitErr) {
		return 0, err
	}

	if exitErr.ExitCode() == 0 {
		return 0, nil
	}

	return int(exitErr.ExitCode()), err
}

// hostEnv backs the bencher host module for a single guest instance.
type hostEnv struct {
	origin time.Time
	diag   bytes.Buffer
}

func newHostEnv() *hostEnv {
	return &hostEnv{origin: time.Now()}
}

func (h *hostEnv) instantiate(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(bencher.HostModule).
		NewFunctionBuilder().
		WithFunc(h.meterRead).
		Export(bencher.HostMeterRead).
		NewFunctionBuilder().
		WithFunc(h.printError).
		Export(bencher.HostPrintError).
		Instantiate(ctx)

	return err
}

// meterRead returns host nanoseconds since the instance was set up.
func (h *hostEnv) meterRead(context.Context) uint64 {
	return uint64(time.Since(h.origin))
}

func (h *hostEnv) printError(_ context.Context, mod api.Module, ptr, size uint32) {
	mem := mod.Memory()
	if mem == nil {
		h.diag.WriteString("print_error: guest has no memory")

		return
	}

	data, ok := mem.Read(ptr, size)
	if !ok {
		fmt.Fprintf(&h.diag, "print_error: read of %d bytes at %#x out of range", size, ptr)

		return
	}

	h.diag.Write(data)
}

func (h *hostEnv) diagnostic() string {
	return h.diag.String()
}
