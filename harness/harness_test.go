package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/weiihann/guestbench/bencher"
	"github.com/weiihann/guestbench/guest"
)

const envTestGuest = "GUESTBENCH_TEST_GUEST"

// TestMain lets the test binary double as a native guest artifact.
func TestMain(m *testing.M) {
	switch os.Getenv(envTestGuest) {
	case "":
		os.Exit(m.Run())
	case "ok":
		os.Exit(guest.Run(os.Stdout, guest.OpenChannel(),
			os.Getenv(bencher.EnvGuestMeter), helperBenches()...))
	case "panic":
		benches := append(helperBenches(), bencher.Named("explode", func(b *bencher.Bencher) {
			b.Bench(func() { panic("weight limit exceeded") })
		}))
		os.Exit(guest.Run(os.Stdout, guest.OpenChannel(),
			os.Getenv(bencher.EnvGuestMeter), benches...))
	case "silent":
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "fatal error: out of memory")
		os.Exit(2)
	default:
		os.Exit(99)
	}
}

func helperBenches() []bencher.Bench {
	return []bencher.Bench{
		bencher.Named("foo", func(b *bencher.Bencher) { b.Bench(func() {}) }),
		bencher.Named("bar", func(b *bencher.Bencher) {
			b.Name("bench_name").Bench(func() {})
		}),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func helperRunner(mode string) *Runner {
	return NewRunner("helper", bencher.MeterClock, nil,
		[]string{envTestGuest + "=" + mode}, discardLogger())
}

func TestParseOutput(t *testing.T) {
	input := `{
		"unit": "instructions",
		"results": [
			{"name": "foo", "value": 10},
			{"name": "bench_name", "value": 25}
		]
	}`

	out, err := parseOutput("demo", strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseOutput failed: %v", err)
	}

	if out.Guest != "demo" {
		t.Errorf("guest = %q, want demo", out.Guest)
	}
	if out.Unit != "instructions" {
		t.Errorf("unit = %q, want instructions", out.Unit)
	}

	want := []bencher.Result{{Name: "foo", Value: 10}, {Name: "bench_name", Value: 25}}
	if diff := cmp.Diff(want, out.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOutputNoResultList(t *testing.T) {
	_, err := parseOutput("demo", strings.NewReader(`{"unit":"ns"}`))
	if !errors.Is(err, bencher.ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

func TestParseOutputInvalidJSON(t *testing.T) {
	_, err := parseOutput("demo", strings.NewReader("not json at all"))
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRunnerSuccess(t *testing.T) {
	out, err := helperRunner("ok").Run(context.Background(), os.Args[0])
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Target != TargetNative {
		t.Errorf("target = %q, want native", out.Target)
	}
	if out.Unit != "ns" {
		t.Errorf("unit = %q, want ns", out.Unit)
	}

	var names []string
	for _, r := range out.Results {
		names = append(names, r.Name)
	}

	if diff := cmp.Diff([]string{"foo", "bench_name"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRunnerForwardsPanic(t *testing.T) {
	out, err := helperRunner("panic").Run(context.Background(), os.Args[0])
	if out != nil {
		t.Errorf("output = %+v, want nil", out)
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}

	if execErr.ExitCode != guest.ExitFailure {
		t.Errorf("exit code = %d, want %d", execErr.ExitCode, guest.ExitFailure)
	}
	if !strings.Contains(execErr.Message, "weight limit exceeded") {
		t.Errorf("message %q lacks panic text", execErr.Message)
	}
}

func TestRunnerSilentExitIsError(t *testing.T) {
	_, err := helperRunner("silent").Run(context.Background(), os.Args[0])

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
}

func TestRunnerCrashUsesStderr(t *testing.T) {
	_, err := helperRunner("crash").Run(context.Background(), os.Args[0])

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}

	if execErr.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Message, "out of memory") {
		t.Errorf("message = %q, want stderr text", execErr.Message)
	}
}

func TestRunnerMissingArtifact(t *testing.T) {
	_, err := helperRunner("ok").Run(context.Background(), "/nonexistent/guest")

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
}

func TestNewExecutor(t *testing.T) {
	native, err := NewExecutor(TargetNative, "g", "", discardLogger())
	if err != nil {
		t.Fatalf("NewExecutor(native) failed: %v", err)
	}
	if _, ok := native.(*Runner); !ok {
		t.Errorf("native executor = %T, want *Runner", native)
	}

	wasm, err := NewExecutor(TargetWasm, "g", bencher.MeterClock, discardLogger())
	if err != nil {
		t.Fatalf("NewExecutor(wasm) failed: %v", err)
	}
	wr, ok := wasm.(*WasmRunner)
	if !ok {
		t.Fatalf("wasm executor = %T, want *WasmRunner", wasm)
	}
	if wr.Meter != bencher.MeterClock {
		t.Errorf("wasm meter = %q, want %q", wr.Meter, bencher.MeterClock)
	}

	if _, err := NewExecutor("jvm", "g", "", discardLogger()); err == nil {
		t.Error("expected error for unknown target")
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		wantErr bool
	}{
		{"native", TargetNative, false},
		{"wasm", TargetWasm, false},
		{"", "", true},
		{"WASM", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTarget(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTarget(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseTarget(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
