package loop

import "time"

// Throttle returns a function that calls fn at most once per interval on l.
// The first call runs fn right away. Calls during the interval are collapsed into
// a single call when it ends.
func Throttle(l *Loop, interval time.Duration, fn func()) (throttled func(), cancel func()) {
	var (
		locked    bool
		wantCall  bool
		lockTimer *Timer
		later     func()
	)
	later = func() {
		locked = false
		if wantCall {
			wantCall = false
			fn()
			locked = true
			lockTimer = l.AfterFunc(interval, later)
		}
	}
	throttled = func() {
		if locked {
			wantCall = true
			return
		}
		fn()
		locked = true
		lockTimer = l.AfterFunc(interval, later)
	}
	cancel = func() {
		lockTimer.Stop()
		locked = false
		wantCall = false
	}
	return throttled, cancel
}
