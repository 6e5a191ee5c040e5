//go:build !linux && !wasip1

package bencher

func openMeter(kind string) (Meter, error) {
	switch kind {
	case "", MeterClock:
		return NewClockMeter(), nil
	default:
		return nil, errUnknownMeter(kind)
	}
}
