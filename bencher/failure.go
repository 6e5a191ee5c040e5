package bencher

import (
	"fmt"
	"strings"
)

// Failure is the diagnostic carried by a Bencher in StateFailed.
type Failure struct {
	Case    string
	Phase   Phase
	Block   string
	Message string
	Stack   []byte
}

func (f *Failure) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "bench %q panicked during %s", f.Case, f.Phase)

	if f.Block != "" {
		fmt.Fprintf(&sb, " in block %q", f.Block)
	}

	sb.WriteString(": ")
	sb.WriteString(f.Message)

	return sb.String()
}

// Diagnostic renders the failure with its stack for the host.
func (f *Failure) Diagnostic() string {
	if len(f.Stack) == 0 {
		return f.Error()
	}

	return f.Error() + "\n\n" + string(f.Stack)
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
