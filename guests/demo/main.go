// Demo guest benchmarks transfers and mints against a small in-memory
// balance store. Build it natively or with GOOS=wasip1 GOARCH=wasm and run
// it through guestbench.
package main

import (
	"flag"
	"fmt"

	"github.com/weiihann/guestbench/bencher"
	"github.com/weiihann/guestbench/guest"
)

var balances = map[string]uint64{}

func transfer(from, to string, amount uint64) {
	bencher.Measured("transfer", func() {
		if balances[from] < amount {
			panic(fmt.Sprintf("transfer %s -> %s: insufficient balance", from, to))
		}

		balances[from] -= amount
		balances[to] += amount
	})()
}

func mint(to string, amount uint64) {
	bencher.Measured("mint", func() {
		balances[to] += amount
	})()
}

func foo(b *bencher.Bencher) {
	b.Prepare(func() {
		clear(balances)
		balances["alice"] = 1_000
	}).
		Bench(func() {
			transfer("alice", "bob", 10)
		}).
		Verify(func() {
			if balances["bob"] != 10 {
				panic(fmt.Sprintf("bob has %d, want 10", balances["bob"]))
			}
		})
}

func bar(b *bencher.Bencher) {
	b.Name("bench_name").
		Prepare(func() { clear(balances) }).
		Bench(func() {
			for i := 0; i < 1_000; i++ {
				mint(fmt.Sprintf("account-%d", i), 1)
			}
		})
}

func overdraw(b *bencher.Bencher) {
	b.Prepare(func() { clear(balances) }).
		Bench(func() {
			transfer("nobody", "bob", 1)
		})
}

func main() {
	fail := flag.Bool("fail", false, "also register a bench that panics")
	flag.Parse()

	benches := []bencher.Bench{bencher.Func(foo), bencher.Func(bar)}
	if *fail {
		benches = append(benches, bencher.Func(overdraw))
	}

	guest.Main(benches...)
}
