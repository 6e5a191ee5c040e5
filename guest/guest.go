// Package guest is the entrypoint of a guest program. It runs the registered
// benches once, writes the result list to stdout and, when anything fails,
// forwards a diagnostic to the host and terminates the guest.
package guest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/weiihann/guestbench/bencher"
)

// ExitFailure is the exit code of a guest that forwarded a diagnostic.
const ExitFailure = 3

// Channel delivers a diagnostic to the host ahead of guest termination.
type Channel interface {
	Send(msg []byte) error
}

// Main runs benches and exits. It is meant to be the whole body of a guest
// program's main function.
func Main(benches ...bencher.Bench) {
	code := Run(os.Stdout, OpenChannel(), os.Getenv(bencher.EnvGuestMeter), benches...)
	os.Exit(code)
}

// Run executes benches with the named meter and writes the encoded result
// list to w. It returns the process exit code. On failure nothing is written
// to w and the diagnostic goes to ch instead.
func Run(
	w io.Writer,
	ch Channel,
	meterKind string,
	benches ...bencher.Bench,
) (code int) {
	defer func() {
		if r := recover(); r != nil {
			code = abort(ch, fmt.Sprintf("guest panicked: %v\n\n%s", r, debug.Stack()))
		}
	}()

	meter, err := bencher.OpenMeter(meterKind)
	if err != nil {
		return abort(ch, err.Error())
	}

	if c, ok := meter.(interface{ Close() }); ok {
		defer c.Close()
	}

	results, err := bencher.RunBenches(meter, benches...)
	if err != nil {
		return abort(ch, diagnostic(err))
	}

	out := bencher.Output{Unit: meter.Unit(), Results: results}
	if err := bencher.WriteOutput(w, out); err != nil {
		return abort(ch, err.Error())
	}

	return 0
}

func diagnostic(err error) string {
	var f *bencher.Failure
	if errors.As(err, &f) {
		return f.Diagnostic()
	}

	return err.Error()
}
