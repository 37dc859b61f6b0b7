package clock

import "time"

// NowFunc returns the current time. Override in tests for deterministic
// deadline handling.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
