package bencher

import "fmt"

// active is the Bencher whose case is running. Guests run one case at a time
// on a single goroutine.
var active *Bencher

func activate(b *Bencher) *Bencher {
	prev := active
	active = b

	return prev
}

// BeforeBlock opens an instrumented block. Blocks only matter during the
// measured step, whose value is read by the engine itself; nesting is
// tracked so that unbalanced hooks fail the case instead of skewing it.
func (b *Bencher) BeforeBlock() {
	if !b.measuring {
		return
	}

	b.depth++
}

// AfterBlock closes the block opened by the matching BeforeBlock.
func (b *Bencher) AfterBlock() {
	if !b.measuring {
		return
	}

	if b.depth == 0 {
		b.underflow = true

		return
	}

	b.depth--
}

// checkBalanced reports hooks left open or closed twice by the bench step.
func (b *Bencher) checkBalanced() error {
	switch {
	case b.underflow:
		return b.fail(PhaseBench, "AfterBlock called without a matching BeforeBlock", nil)
	case b.depth != 0:
		return b.fail(PhaseBench,
			fmt.Sprintf("%d BeforeBlock call(s) left without a matching AfterBlock", b.depth), nil)
	default:
		return nil
	}
}

// BeforeBlock opens a block on the running Bencher, if any.
func BeforeBlock() {
	if active != nil {
		active.BeforeBlock()
	}
}

// AfterBlock closes a block on the running Bencher, if any.
func AfterBlock() {
	if active != nil {
		active.AfterBlock()
	}
}

// Measured wraps fn so that each call is bracketed by BeforeBlock and
// AfterBlock. When no case is running the wrapper just calls fn.
func Measured(name string, fn func()) func() {
	return func() {
		b := active
		if b == nil {
			fn()

			return
		}

		outer := b.block
		b.block = name

		b.BeforeBlock()
		fn()
		b.AfterBlock()

		b.block = outer
	}
}
