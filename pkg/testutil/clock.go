package testutil

import (
	"sync"
	"time"
)

// FixedClock always returns t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SteppingClock starts at t and advances by step on every call.
func SteppingClock(t time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := t
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}
