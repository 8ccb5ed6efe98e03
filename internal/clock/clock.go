package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns the current time truncated to milliseconds in UTC, so values
// survive a JSON round trip unchanged.
func Now() time.Time { return NowFunc().UTC().Truncate(time.Millisecond) }

// Freeze pins Now to t and returns a restore function.
func Freeze(t time.Time) func() {
	prev := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = prev }
}

// Advance moves a frozen clock forward by d.
func Advance(d time.Duration) {
	current := NowFunc()
	NowFunc = func() time.Time { return current.Add(d) }
}
