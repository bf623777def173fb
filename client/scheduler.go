package client

import (
	"sync"
	"time"
)

// DefaultBudget is how long a frame may spend draining tasks.
const DefaultBudget = 8 * time.Millisecond

// FrameSource runs callbacks on frame boundaries.
type FrameSource interface {
	RequestFrame(fn func())
}

// TickerFrames delivers a frame Interval after it was requested, on its
// own goroutine. The zero value uses 16ms.
type TickerFrames struct {
	Interval time.Duration
}

func (f TickerFrames) RequestFrame(fn func()) {
	d := f.Interval
	if d <= 0 {
		d = 16 * time.Millisecond
	}
	time.AfterFunc(d, fn)
}

// ManualFrames holds requested frames until Step runs them.
type ManualFrames struct {
	mu      sync.Mutex
	pending []func()
}

func (f *ManualFrames) RequestFrame(fn func()) {
	f.mu.Lock()
	f.pending = append(f.pending, fn)
	f.mu.Unlock()
}

// Step runs the oldest pending frame and reports whether there was one.
func (f *ManualFrames) Step() bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	fn := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()
	fn()
	return true
}

// Pending returns the number of frames waiting for Step.
func (f *ManualFrames) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Scheduler is a FIFO task queue drained inside frames. A frame runs
// tasks until the queue is empty or the budget is spent, then requests
// another frame for the rest. Tasks are never reordered or merged.
type Scheduler struct {
	mu      sync.Mutex
	queue   []func()
	running bool

	frames FrameSource
	budget time.Duration
	now    func() time.Time

	// OnPanic receives values recovered from tasks.
	OnPanic func(v any)
}

// NewScheduler creates a scheduler. Zero budget means DefaultBudget.
func NewScheduler(frames FrameSource, budget time.Duration) *Scheduler {
	if frames == nil {
		frames = TickerFrames{}
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Scheduler{frames: frames, budget: budget, now: time.Now}
}

// Push appends a task and makes sure a frame is coming.
func (s *Scheduler) Push(task func()) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	s.run()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.frames.RequestFrame(s.flush)
}

func (s *Scheduler) flush() {
	start := s.now()
	ran := 0
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || (ran > 0 && s.now().Sub(start) >= s.budget) {
			break
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.runTask(task)
		ran++
	}
	s.running = false
	more := len(s.queue) > 0
	s.mu.Unlock()

	if more {
		s.run()
	}
}

func (s *Scheduler) runTask(task func()) {
	defer func() {
		if v := recover(); v != nil && s.OnPanic != nil {
			s.OnPanic(v)
		}
	}()
	task()
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Idle reports whether no task is queued or running.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && !s.running
}
