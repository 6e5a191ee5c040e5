//go:build linux

package bencher

import "testing"

func TestThreadCPUMeter(t *testing.T) {
	m, err := NewThreadCPUMeter()
	if err != nil {
		t.Skipf("thread CPU time unavailable: %v", err)
	}

	before := m.Read()

	x := 0
	for i := 0; i < 5_000_000; i++ {
		x += i % 7
	}
	_ = x

	if after := m.Read(); after < before {
		t.Errorf("cpu meter went backwards: %d < %d", after, before)
	}
}

func TestInstructionMeter(t *testing.T) {
	m, err := NewInstructionMeter()
	if err != nil {
		t.Skipf("perf events unavailable: %v", err)
	}
	defer m.Close()

	before := m.Read()

	x := 0
	for i := 0; i < 1_000_000; i++ {
		x += i
	}
	_ = x

	after := m.Read()
	if after == 0 {
		t.Skip("instruction counter was never scheduled")
	}

	if after <= before {
		t.Errorf("instructions did not advance: %d <= %d", after, before)
	}
}
