// Package bencher runs registered benchmark cases inside a guest process and
// records the resource units consumed by each case's measured step.
package bencher

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNoBench is returned by Run when no measured step was registered.
var ErrNoBench = errors.New("bencher: run called without a bench step")

// State is the lifecycle position of a Bencher.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateRecorded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Phase names the part of a case that was executing.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhasePrepare Phase = "prepare"
	PhaseBench   Phase = "bench"
	PhaseVerify  Phase = "verify"
)

// Result is the measurement recorded for one case.
type Result struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

// Bencher holds the configuration of the current case, its measurement and
// the nesting of the block hooks.
type Bencher struct {
	meter Meter

	id      string
	name    string
	prepare func()
	bench   func()
	verify  func()

	state     State
	measuring bool
	depth     int
	underflow bool
	elapsed   uint64
	block     string
	failure   *Failure
}

// New returns an idle Bencher reading from meter.
func New(meter Meter) *Bencher {
	return &Bencher{meter: meter}
}

// Name sets the name the result is recorded under. The last call wins.
func (b *Bencher) Name(name string) *Bencher {
	b.name = name
	b.configured()

	return b
}

// Prepare registers a step that runs before measurement starts.
func (b *Bencher) Prepare(f func()) *Bencher {
	b.prepare = f
	b.configured()

	return b
}

// Bench registers the measured step.
func (b *Bencher) Bench(f func()) *Bencher {
	b.bench = f
	b.configured()

	return b
}

// Verify registers a step that runs after measurement stops.
func (b *Bencher) Verify(f func()) *Bencher {
	b.verify = f
	b.configured()

	return b
}

func (b *Bencher) configured() {
	if b.state != StateRunning {
		b.state = StateConfigured
	}
}

// Reset returns the Bencher to its initial idle state.
func (b *Bencher) Reset() {
	*b = Bencher{meter: b.meter}
}

// State reports where the Bencher is in its lifecycle.
func (b *Bencher) State() State {
	return b.state
}

// Failure returns the diagnostic of the last failed run, or nil.
func (b *Bencher) Failure() *Failure {
	return b.failure
}

// Run executes prepare, the measured bench step, then verify. The value is
// the meter delta across the whole bench step; block hooks inside it must
// balance or the case fails. A panic in any step leaves the Bencher in
// StateFailed and no result is produced.
func (b *Bencher) Run() (Result, error) {
	if b.state == StateRunning {
		return Result{}, fmt.Errorf("bencher: run called while %q is running", b.name)
	}

	if b.name == "" {
		b.name = b.id
	}

	if b.bench == nil {
		b.state = StateFailed
		b.failure = &Failure{
			Case:    b.name,
			Phase:   PhaseSetup,
			Message: ErrNoBench.Error(),
		}

		return Result{}, fmt.Errorf("case %q: %w", b.name, ErrNoBench)
	}

	b.state = StateRunning
	b.elapsed, b.depth, b.underflow, b.block = 0, 0, false, ""

	prev := activate(b)
	defer activate(prev)

	if err := b.phase(PhasePrepare, b.prepare); err != nil {
		return Result{}, err
	}

	if err := b.phase(PhaseBench, b.measure); err != nil {
		return Result{}, err
	}

	if err := b.checkBalanced(); err != nil {
		return Result{}, err
	}

	if err := b.phase(PhaseVerify, b.verify); err != nil {
		return Result{}, err
	}

	b.state = StateRecorded

	return Result{Name: b.name, Value: b.elapsed}, nil
}

func (b *Bencher) measure() {
	b.measuring = true
	defer func() { b.measuring = false }()

	start := b.meter.Read()
	b.bench()

	if end := b.meter.Read(); end > start {
		b.elapsed = end - start
	}
}

func (b *Bencher) phase(p Phase, f func()) (err error) {
	if f == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = b.fail(p, r, debug.Stack())
		}
	}()

	f()

	return nil
}

func (b *Bencher) fail(p Phase, r any, stack []byte) *Failure {
	f := &Failure{
		Case:    b.name,
		Phase:   p,
		Block:   b.block,
		Message: panicMessage(r),
		Stack:   stack,
	}

	b.state = StateFailed
	b.failure = f

	return f
}
