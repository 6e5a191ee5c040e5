package bencher

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// counterMeter is a deterministic meter advanced by consume.
type counterMeter struct {
	n uint64
}

func (m *counterMeter) Read() uint64 { return m.n }

func (m *counterMeter) Unit() string { return "units" }

func (m *counterMeter) consume(n uint64) { m.n += n }

func TestRunMeasuresOnlyBenchStep(t *testing.T) {
	m := &counterMeter{}
	b := New(m)

	b.Name("only_bench").
		Prepare(func() { m.consume(7) }).
		Bench(func() { m.consume(10) }).
		Verify(func() { m.consume(5) })

	res, err := b.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Value != 10 {
		t.Errorf("value = %d, want 10", res.Value)
	}
	if res.Name != "only_bench" {
		t.Errorf("name = %q, want only_bench", res.Name)
	}
	if b.State() != StateRecorded {
		t.Errorf("state = %s, want recorded", b.State())
	}
}

func TestRunPhaseOrder(t *testing.T) {
	var order []string

	b := New(&counterMeter{})
	b.Verify(func() { order = append(order, "verify") }).
		Bench(func() { order = append(order, "bench") }).
		Prepare(func() { order = append(order, "prepare") })

	if _, err := b.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"prepare", "bench", "verify"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("phase order mismatch (-want +got):\n%s", diff)
	}
}

func TestNameDefaultsToID(t *testing.T) {
	b := New(&counterMeter{})
	b.id = "foo"
	b.Bench(func() {})

	res, err := b.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Name != "foo" {
		t.Errorf("name = %q, want foo", res.Name)
	}
}

func TestNameLastWriteWins(t *testing.T) {
	b := New(&counterMeter{})
	b.id = "foo"
	b.Name("first").Name("second").Bench(func() {})

	res, err := b.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Name != "second" {
		t.Errorf("name = %q, want second", res.Name)
	}
}

func TestResetIdempotent(t *testing.T) {
	m := &counterMeter{}
	b := New(m)

	b.Name("dirty").
		Prepare(func() {}).
		Bench(func() { m.consume(3) }).
		Verify(func() {})
	if _, err := b.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	opts := cmp.AllowUnexported(Bencher{}, counterMeter{})

	for i := 0; i < 3; i++ {
		b.Reset()

		if diff := cmp.Diff(New(m), b, opts); diff != "" {
			t.Fatalf("reset %d: state mismatch (-want +got):\n%s", i+1, diff)
		}
	}

	if b.State() != StateIdle {
		t.Errorf("state = %s, want idle", b.State())
	}
}

func TestResetIsolatesCases(t *testing.T) {
	m := &counterMeter{}
	b := New(m)

	b.Name("a").Bench(func() { m.consume(100) })
	if _, err := b.Run(); err != nil {
		t.Fatalf("run a: %v", err)
	}

	b.Reset()

	b.Name("b").Bench(func() { m.consume(3) })
	res, err := b.Run()
	if err != nil {
		t.Fatalf("run b: %v", err)
	}

	if res.Value != 3 {
		t.Errorf("b value = %d, want 3", res.Value)
	}
}

func TestRunWithoutBench(t *testing.T) {
	b := New(&counterMeter{})
	b.Name("empty").Prepare(func() {})

	_, err := b.Run()
	if !errors.Is(err, ErrNoBench) {
		t.Fatalf("err = %v, want ErrNoBench", err)
	}

	if b.State() != StateFailed {
		t.Errorf("state = %s, want failed", b.State())
	}
}

func TestRunBenchPanic(t *testing.T) {
	verified := false

	b := New(&counterMeter{})
	b.Name("boom").
		Bench(func() { panic("storage overflow") }).
		Verify(func() { verified = true })

	res, err := b.Run()
	if err == nil {
		t.Fatal("expected error from panicking bench")
	}

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %T, want *Failure", err)
	}

	if f.Phase != PhaseBench {
		t.Errorf("phase = %s, want bench", f.Phase)
	}
	if f.Message != "storage overflow" {
		t.Errorf("message = %q, want storage overflow", f.Message)
	}
	if res != (Result{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if verified {
		t.Error("verify ran after a failed bench")
	}
	if b.State() != StateFailed || b.Failure() != f {
		t.Errorf("state = %s, failure = %v", b.State(), b.Failure())
	}
}

func TestRunVerifyPanic(t *testing.T) {
	b := New(&counterMeter{})
	b.Name("checked").
		Bench(func() {}).
		Verify(func() { panic(errors.New("value mismatch")) })

	_, err := b.Run()

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %v, want *Failure", err)
	}

	if f.Phase != PhaseVerify {
		t.Errorf("phase = %s, want verify", f.Phase)
	}
	if !strings.Contains(f.Error(), "value mismatch") {
		t.Errorf("error %q does not carry the panic message", f.Error())
	}
}

func TestStateTransitions(t *testing.T) {
	b := New(&counterMeter{})
	if b.State() != StateIdle {
		t.Fatalf("new state = %s, want idle", b.State())
	}

	var during State
	b.Bench(func() { during = b.State() })

	if b.State() != StateConfigured {
		t.Errorf("configured state = %s", b.State())
	}

	if _, err := b.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if during != StateRunning {
		t.Errorf("state during bench = %s, want running", during)
	}
	if b.State() != StateRecorded {
		t.Errorf("state after run = %s, want recorded", b.State())
	}

	b.Reset()
	if b.State() != StateIdle {
		t.Errorf("state after reset = %s, want idle", b.State())
	}
}

func TestRunReentrant(t *testing.T) {
	b := New(&counterMeter{})

	var inner error
	b.Name("outer").Bench(func() { _, inner = b.Run() })

	if _, err := b.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if inner == nil {
		t.Error("expected error from nested Run")
	}
}
