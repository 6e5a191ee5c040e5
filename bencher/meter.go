package bencher

import (
	"fmt"
	"time"
)

// Meter kinds understood by OpenMeter.
const (
	MeterInstructions = "instructions"
	MeterCPU          = "cpu"
	MeterClock        = "clock"
	MeterHost         = "host"
)

// Meter is a monotonic counter of consumed resource units.
type Meter interface {
	Read() uint64
	Unit() string
}

// ClockMeter counts nanoseconds of monotonic wall time.
type ClockMeter struct {
	origin time.Time
}

// NewClockMeter returns a ClockMeter starting at zero.
func NewClockMeter() *ClockMeter {
	return &ClockMeter{origin: time.Now()}
}

func (m *ClockMeter) Read() uint64 {
	return uint64(time.Since(m.origin))
}

func (m *ClockMeter) Unit() string { return "ns" }

// OpenMeter opens the named meter. An empty kind selects the platform
// default.
func OpenMeter(kind string) (Meter, error) {
	m, err := openMeter(kind)
	if err != nil {
		return nil, fmt.Errorf("open %s meter: %w", kindOrDefault(kind), err)
	}

	return m, nil
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "default"
	}

	return kind
}

func errUnknownMeter(kind string) error {
	return fmt.Errorf("unknown meter %q on this platform", kind)
}
