//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SchedulerNotSleep keeps the coordinator packages off the wall clock. Delays
// go through the runloop scheduler so runloop.Manual can drive them in tests.
func SchedulerNotSleep(m dsl.Matcher) {
	m.Match(`time.Sleep($d)`, `time.After($d)`, `time.NewTimer($d)`, `time.AfterFunc($d, $f)`).
		Where(m.File().PkgPath.Matches(`/internal/(controller|syncgroup|progress)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("schedule delays with the runloop.Scheduler instead of $$")
}

// StructuredLogging flags ad hoc printing in library packages.
func StructuredLogging(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `log.Printf($*_)`, `log.Println($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("log through logger.Global().Module(...) instead of $$")
}

// EnhancedErrors flags bare stdlib errors where a categorized error is expected.
func EnhancedErrors(m dsl.Matcher) {
	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") &&
			m.File().PkgPath.Matches(`/internal/(controller|capture|api)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("use the internal errors package (errors.NewStd for sentinels, errors.Newf(...).Category(...) otherwise)")
}
