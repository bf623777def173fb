package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by step on every reading.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestScheduler_FIFO(t *testing.T) {
	frames := &ManualFrames{}
	s := NewScheduler(frames, time.Hour)

	var got []int
	for i := 1; i <= 5; i++ {
		s.Push(func() { got = append(got, i) })
	}
	assert.Equal(t, 1, frames.Pending(), "one frame for a burst of pushes")
	assert.False(t, s.Idle())

	require.True(t, frames.Step())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.True(t, s.Idle())
	assert.Zero(t, frames.Pending())
}

func TestScheduler_Budget(t *testing.T) {
	frames := &ManualFrames{}
	s := NewScheduler(frames, 8*time.Millisecond)
	clock := &stepClock{t: time.Unix(0, 0), step: 3 * time.Millisecond}
	s.now = clock.now

	var got []int
	for i := 1; i <= 6; i++ {
		s.Push(func() { got = append(got, i) })
	}

	// The frame starts at 3ms; checks read 6, 9 and 12ms, and 12ms is
	// over budget.
	require.True(t, frames.Step())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, frames.Pending(), "rest rescheduled")

	for frames.Step() {
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)
	assert.True(t, s.Idle())
}

func TestScheduler_SlowTaskStillProgresses(t *testing.T) {
	frames := &ManualFrames{}
	s := NewScheduler(frames, time.Millisecond)
	clock := &stepClock{t: time.Unix(0, 0), step: time.Second}
	s.now = clock.now

	var got []int
	for i := 1; i <= 3; i++ {
		s.Push(func() { got = append(got, i) })
	}
	steps := 0
	for frames.Step() {
		steps++
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 3, steps, "one task per frame when every task exceeds the budget")
}

func TestScheduler_PushDuringFlush(t *testing.T) {
	frames := &ManualFrames{}
	s := NewScheduler(frames, time.Hour)

	var got []string
	s.Push(func() {
		got = append(got, "a")
		s.Push(func() { got = append(got, "c") })
	})
	s.Push(func() { got = append(got, "b") })

	for frames.Step() {
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestScheduler_Panic(t *testing.T) {
	frames := &ManualFrames{}
	s := NewScheduler(frames, time.Hour)
	var recovered []any
	s.OnPanic = func(v any) { recovered = append(recovered, v) }

	ran := false
	s.Push(func() { panic("boom") })
	s.Push(func() { ran = true })
	for frames.Step() {
	}
	assert.Equal(t, []any{"boom"}, recovered)
	assert.True(t, ran, "tasks after a panic still run")
}

func TestTickerFrames(t *testing.T) {
	s := NewScheduler(TickerFrames{Interval: time.Millisecond}, 0)
	done := make(chan struct{})
	s.Push(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}
