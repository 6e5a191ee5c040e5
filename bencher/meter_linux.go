//go:build linux

package bencher

import (
	"fmt"
	"runtime"

	"github.com/aclements/go-perfevent/events"
	"github.com/aclements/go-perfevent/perf"
	"golang.org/x/sys/unix"
)

// InstructionMeter counts retired instructions on the calling goroutine.
// It locks the goroutine to its OS thread until Close.
type InstructionMeter struct {
	counter *perf.Counter
	last    uint64
}

// NewInstructionMeter opens and starts a hardware instruction counter.
func NewInstructionMeter() (*InstructionMeter, error) {
	c, err := perf.OpenCounter(perf.TargetThisGoroutine, events.EventInstructions)
	if err != nil {
		return nil, fmt.Errorf("open counter %s: %w", events.EventInstructions, err)
	}

	c.Start()

	return &InstructionMeter{counter: c}, nil
}

func (m *InstructionMeter) Read() uint64 {
	count, err := m.counter.ReadOne()
	if err == nil && count.RawValue > m.last {
		m.last = count.RawValue
	}

	return m.last
}

func (m *InstructionMeter) Unit() string { return "instructions" }

// Close stops the counter and unlocks the OS thread.
func (m *InstructionMeter) Close() {
	m.counter.Close()
}

// ThreadCPUMeter counts nanoseconds of CPU time used by the calling thread.
// It locks the goroutine to its OS thread.
type ThreadCPUMeter struct{}

// NewThreadCPUMeter locks the calling goroutine to its thread and returns a
// meter for that thread.
func NewThreadCPUMeter() (*ThreadCPUMeter, error) {
	runtime.LockOSThread()

	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("getrusage: %w", err)
	}

	return &ThreadCPUMeter{}, nil
}

func (m *ThreadCPUMeter) Read() uint64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		return 0
	}

	return uint64(ru.Utime.Nano() + ru.Stime.Nano())
}

func (m *ThreadCPUMeter) Unit() string { return "ns" }

func openMeter(kind string) (Meter, error) {
	switch kind {
	case "":
		if m, err := NewInstructionMeter(); err == nil {
			return m, nil
		}

		return NewThreadCPUMeter()
	case MeterInstructions:
		return NewInstructionMeter()
	case MeterCPU:
		return NewThreadCPUMeter()
	case MeterClock:
		return NewClockMeter(), nil
	default:
		return nil, errUnknownMeter(kind)
	}
}
