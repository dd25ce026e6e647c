// Package loop is the single cooperative thread a map and its layers run on.
//
// Everything scheduled on a Loop (posted callbacks, render frames, timers) runs on one goroutine,
// one callback at a time, so the state those callbacks touch needs no locking.
// Post is the only method meant for other goroutines, the rest is called from loop callbacks
// (or before the loop starts).
package loop

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FrameInterval is the time between two render frames.
const FrameInterval = 16 * time.Millisecond

// FrameID identifies a requested frame callback, for CancelFrame.
type FrameID uint64

type Loop struct {
	mu      sync.Mutex
	now     func() time.Time
	posted  []func()
	wake    chan struct{}
	frames  []frameRequest
	timers  []*Timer
	lastID  uint64
	running bool
}

type frameRequest struct {
	id FrameID
	fn func()
}

// Timer is a callback scheduled with AfterFunc.
type Timer struct {
	loop     *Loop
	deadline time.Time
	seq      uint64
	fn       func()
}

// New returns a Loop on the wall clock. Start it with Run.
func New() *Loop {
	return newLoop(time.Now)
}

func newLoop(now func() time.Time) *Loop {
	return &Loop{
		now:  now,
		wake: make(chan struct{}, 1),
	}
}

// Now is the time of the loop's clock.
func (l *Loop) Now() time.Time {
	return l.now()
}

// Post schedules fn to run on the loop. Safe to call from any goroutine.
// Callbacks run in the order they were posted.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RequestFrame schedules fn for the next render frame.
// Frames requested from within a frame callback run on the frame after.
func (l *Loop) RequestFrame(fn func()) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastID++
	id := FrameID(l.lastID)
	l.frames = append(l.frames, frameRequest{id: id, fn: fn})
	return id
}

// CancelFrame unschedules a frame callback. Cancelling an unknown or finished frame is a no-op.
func (l *Loop) CancelFrame(id FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, f := range l.frames {
		if f.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

// AfterFunc schedules fn to run on the loop once d has passed on the loop's clock.
// Timers with the same deadline fire in the order they were created.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastID++
	t := &Timer{loop: l, deadline: l.now().Add(d), seq: l.lastID, fn: fn}
	l.timers = append(l.timers, t)
	sort.SliceStable(l.timers, func(i, j int) bool {
		return l.timers[i].deadline.Before(l.timers[j].deadline)
	})
	return t
}

// Stop prevents the timer from firing. It returns false if the timer already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, other := range l.timers {
		if other == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Run drives the loop on the wall clock until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		panic("loop is already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()
	for {
		l.flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-ticker.C:
			l.fireTimers()
			l.runFrame()
		}
	}
}

// flush runs posted callbacks, including those posted while flushing.
func (l *Loop) flush() {
	for {
		l.mu.Lock()
		posted := l.posted
		l.posted = nil
		l.mu.Unlock()
		if len(posted) == 0 {
			return
		}
		for _, fn := range posted {
			fn()
		}
	}
}

// fireTimers runs the timers that are due, each followed by the callbacks it posted.
func (l *Loop) fireTimers() {
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].deadline.After(l.now()) {
			l.mu.Unlock()
			return
		}
		t := l.timers[0]
		l.timers = l.timers[1:]
		l.mu.Unlock()
		t.fn()
		l.flush()
	}
}

// runFrame runs the frame callbacks requested before this frame started.
func (l *Loop) runFrame() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()
	for _, f := range frames {
		f.fn()
	}
	l.flush()
}

// Pending reports the number of posted callbacks, requested frames and timers not yet run.
func (l *Loop) Pending() (posted, frames, timers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posted), len(l.frames), len(l.timers)
}
