package bencher

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
)

// Bench is a registered benchmark function. ID is the name used when the
// function does not call Name.
type Bench struct {
	ID string
	Fn func(*Bencher)
}

// Named registers fn under id.
func Named(id string, fn func(*Bencher)) Bench {
	return Bench{ID: id, Fn: fn}
}

// Func registers fn under its own identifier, e.g. "foo" for main.foo.
func Func(fn func(*Bencher)) Bench {
	return Bench{ID: funcIdent(fn), Fn: fn}
}

func funcIdent(fn func(*Bencher)) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}

	return identOf(f.Name())
}

// identOf returns the last identifier of a runtime function name, dropping
// type arguments and the "-fm" suffix of method values.
func identOf(name string) string {
	var sb strings.Builder

	depth := 0
	for _, r := range name {
		switch {
		case r == '[':
			depth++
		case r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			sb.WriteRune(r)
		}
	}

	name = strings.TrimSuffix(sb.String(), "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	return name
}

// RunBenches runs each bench in declaration order through one Bencher that
// is reset between cases. It returns one result per bench, or the first
// failure and no results.
func RunBenches(meter Meter, benches ...Bench) ([]Result, error) {
	results := make([]Result, 0, len(benches))
	b := New(meter)

	for _, bench := range benches {
		b.Reset()
		b.id = bench.ID

		if err := setup(b, bench); err != nil {
			return nil, err
		}

		if b.name == "" {
			b.Name(bench.ID)
		}

		res, err := b.Run()
		if err != nil {
			return nil, err
		}

		results = append(results, res)
	}

	return results, nil
}

func setup(b *Bencher, bench Bench) (err error) {
	if bench.Fn == nil {
		return fmt.Errorf("bench %q: nil function", bench.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			if b.name == "" {
				b.name = bench.ID
			}
			err = b.fail(PhaseSetup, r, debug.Stack())
		}
	}()

	bench.Fn(b)

	return nil
}
