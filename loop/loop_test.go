package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPostRunsInOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []int
	m.Post(func() {
		got = append(got, 1)
		m.Post(func() { got = append(got, 3) })
	})
	m.Post(func() { got = append(got, 2) })
	assert.Empty(t, got)
	m.Flush()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestPostFromGoroutines(t *testing.T) {
	m := NewManual(epoch)
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Post(func() { count++ })
		}()
	}
	wg.Wait()
	m.Flush()
	assert.Equal(t, 50, count)
}

func TestFrames(t *testing.T) {
	m := NewManual(epoch)
	var got []string
	m.RequestFrame(func() {
		got = append(got, "a")
		m.RequestFrame(func() { got = append(got, "c") })
	})
	cancelled := m.RequestFrame(func() { got = append(got, "cancelled") })
	m.RequestFrame(func() { got = append(got, "b") })
	m.CancelFrame(cancelled)
	m.CancelFrame(cancelled)

	m.Frame()
	assert.Equal(t, []string{"a", "b"}, got)
	m.Frame()
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, epoch, m.Now())
}

func TestAfterFunc(t *testing.T) {
	m := NewManual(epoch)
	var got []string
	m.AfterFunc(250*time.Millisecond, func() { got = append(got, "250") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "100a") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "100b") })
	stopped := m.AfterFunc(50*time.Millisecond, func() { got = append(got, "stopped") })
	require.True(t, stopped.Stop())
	require.False(t, stopped.Stop())

	m.Advance(99 * time.Millisecond)
	assert.Empty(t, got)
	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"100a", "100b"}, got)
	m.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"100a", "100b", "250"}, got)
	assert.Equal(t, epoch.Add(300*time.Millisecond), m.Now())
}

func TestSettle(t *testing.T) {
	m := NewManual(epoch)
	n := 0
	var again func()
	again = func() {
		n++
		if n < 5 {
			m.RequestFrame(again)
		}
	}
	m.RequestFrame(again)
	m.AfterFunc(time.Second, func() {})
	require.True(t, m.Settle(2*time.Second))
	assert.Equal(t, 5, n)

	var forever func()
	forever = func() { m.RequestFrame(forever) }
	m.RequestFrame(forever)
	assert.False(t, m.Settle(100*time.Millisecond))
}

func TestThrottle(t *testing.T) {
	m := NewManual(epoch)
	calls := 0
	throttled, cancel := Throttle(m.Loop, 200*time.Millisecond, func() { calls++ })

	throttled()
	assert.Equal(t, 1, calls)
	throttled()
	throttled()
	assert.Equal(t, 1, calls)

	m.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, calls, "calls during the interval collapse into one")
	m.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, calls)

	throttled()
	assert.Equal(t, 3, calls)
	throttled()
	cancel()
	m.Advance(time.Second)
	assert.Equal(t, 3, calls)
}

func TestRun(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		l.Post(func() {
			l.RequestFrame(func() {
				l.AfterFunc(10*time.Millisecond, func() {
					close(done)
				})
			})
		})
	}()

	errs := make(chan error, 1)
	go func() { errs <- l.Run(ctx) }()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("loop did not run the callbacks in time")
	}
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)
}
