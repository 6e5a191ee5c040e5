package harness

import (
	"fmt"
	"strings"
)

// BuildError reports a guest artifact that could not be produced.
type BuildError struct {
	Guest string
	Log   string
	Err   error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build %s: %v", e.Guest, e.Err)
	if log := strings.TrimSpace(e.Log); log != "" {
		msg += "\n" + log
	}

	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// ExecutionError reports a guest that could not be instantiated or invoked,
// or that terminated without returning a result list. Message carries the
// diagnostic the guest forwarded before it terminated, if any.
type ExecutionError struct {
	Guest    string
	Message  string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "guest %s failed", e.Guest)

	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	if e.ExitCode != 0 {
		fmt.Fprintf(&sb, " (exit code %d)", e.ExitCode)
	}

	if msg := strings.TrimSpace(e.Message); msg != "" {
		sb.WriteString("\n")
		sb.WriteString(msg)
	}

	return sb.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
