package bencher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Names shared by guests and the host.
const (
	HostModule       = "bencher"
	HostMeterRead    = "meter_read"
	HostPrintError   = "print_error"
	EnvGuestMeter    = "GUESTBENCH_GUEST_METER"
	EnvGuestPanicFD  = "GUESTBENCH_GUEST_PANIC_FD"
	EntrypointExport = "_start"
)

// ErrNoResults is returned by ReadOutput when the document carries no
// result list.
var ErrNoResults = errors.New("output has no result list")

// Output is the document a guest writes to stdout after a complete run.
type Output struct {
	Unit    string   `json:"unit"`
	Results []Result `json:"results"`
}

// WriteOutput encodes out as a single JSON document.
func WriteOutput(w io.Writer, out Output) error {
	if out.Results == nil {
		out.Results = []Result{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}

// ReadOutput decodes a document written by WriteOutput. Result order is
// preserved.
func ReadOutput(r io.Reader) (Output, error) {
	var out Output
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return Output{}, fmt.Errorf("decode JSON: %w", err)
	}

	if out.Results == nil {
		return Output{}, ErrNoResults
	}

	return out, nil
}
