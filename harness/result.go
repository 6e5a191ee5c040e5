// Package harness builds guest artifacts and executes them, either as a
// native subprocess or as a WASI module inside wazero.
package harness

import (
	"fmt"
	"time"

	"github.com/weiihann/guestbench/bencher"
)

// Target selects how a guest artifact is built and executed.
type Target string

const (
	TargetNative Target = "native"
	TargetWasm   Target = "wasm"
)

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetNative, TargetWasm:
		return t, nil
	default:
		return "", fmt.Errorf("unknown target %q (want native or wasm)", s)
	}
}

// Output holds the decoded result list of one guest execution.
type Output struct {
	Guest    string           `json:"guest"`
	Target   Target           `json:"target"`
	Unit     string           `json:"unit"`
	Results  []bencher.Result `json:"results"`
	WallTime time.Duration    `json:"wall_time_ns"`
}
