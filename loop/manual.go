package loop

import (
	"sync"
	"time"
)

// Manual is a Loop whose clock only moves when told to. It runs callbacks on the calling goroutine,
// which makes it the loop of choice for tests and simulations.
type Manual struct {
	*Loop

	clockMu sync.Mutex
	now     time.Time
}

func NewManual(start time.Time) *Manual {
	m := &Manual{now: start}
	m.Loop = newLoop(m.clock)
	return m
}

func (m *Manual) clock() time.Time {
	m.clockMu.Lock()
	defer m.clockMu.Unlock()
	return m.now
}

// Flush runs all posted callbacks without advancing the clock.
func (m *Manual) Flush() {
	m.flush()
}

// Frame flushes posted callbacks and runs a single render frame without advancing the clock.
func (m *Manual) Frame() {
	m.flush()
	m.runFrame()
}

// Advance moves the clock forward by d in steps of at most FrameInterval.
// Every step fires the timers that came due and runs a render frame.
func (m *Manual) Advance(d time.Duration) {
	m.flush()
	for d > 0 {
		step := min(d, FrameInterval)
		d -= step
		m.clockMu.Lock()
		m.now = m.now.Add(step)
		m.clockMu.Unlock()
		m.fireTimers()
		m.runFrame()
	}
}

// Settle advances the clock until nothing is pending anymore, or until limit has passed.
// It returns false when the limit was hit.
func (m *Manual) Settle(limit time.Duration) bool {
	m.flush()
	for elapsed := time.Duration(0); ; elapsed += FrameInterval {
		posted, frames, timers := m.Pending()
		if posted == 0 && frames == 0 && timers == 0 {
			return true
		}
		if elapsed >= limit {
			return false
		}
		m.Advance(FrameInterval)
	}
}
