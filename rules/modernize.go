//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the Add/Done goroutine pattern. Loop, Manual and the
// event bus all start their workers with wg.Go.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(), which calls Add(1) itself")
}

// TestingContext flags background contexts in tests.
func TestingContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests so work is cancelled when the test ends")
}

// RangeOverInt flags counted loops that can range over an int.
func RangeOverInt(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $n; $i++ { $*body }`).
		Where(m["n"].Type.Is("int") && !m["body"].Contains(`$i`)).
		Report("use for range $n").
		Suggest("for range $n { $body }")
}
