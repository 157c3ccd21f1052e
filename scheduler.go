package xmseq

import (
	"container/heap"
	"context"
	"io"
	"log"
	"math"
	"sync"
	"time"
)

// Clock reports the audio time in seconds.
// AudioHost implementations are clocks.
type Clock interface {
	CurrentTime() float64
}

// CancelFunc cancels a scheduled callback.
// It's safe to call it several times and after the callback was executed.
type CancelFunc func()

type SchedulerConfig struct {
	// Logger receives the lag warnings.
	// A nil value discards them.
	Logger *log.Logger

	// Guard is held while Run executes the callbacks.
	// Use the host lock here to make the callbacks mutually exclusive with the rendering.
	Guard sync.Locker

	// Lookahead makes Run execute the callbacks this many seconds
	// before their deadlines. The callbacks still receive the exact
	// deadline, so the host events stay sample-accurate.
	//
	// A zero value means "no lookahead". It's only used by Run.
	Lookahead float64
}

// Scheduler executes delayed callbacks against the audio clock.
//
// There are two ways to drive it:
//   - Advance, called by a pull-driven host (like an offline renderer)
//     right before it renders the audio up to some point
//   - Run, which uses the wall clock to wake up for the next deadline
//
// The callbacks are always executed outside of AfterDelay,
// even if their deadline is already in the past.
type Scheduler struct {
	clock  Clock
	config SchedulerConfig
	logger *log.Logger

	mu    sync.Mutex
	queue timerQueue
	seq   uint64

	lastLagWarning float64

	wake chan struct{}
}

type timer struct {
	deadline float64
	seq      uint64
	fn       func(when float64)
	index    int
}

const (
	lagWarningInterval = 10.0

	// maxTimersPerAdvance protects Advance from callbacks that keep
	// re-scheduling themselves without advancing the time.
	maxTimersPerAdvance = 1 << 16
)

func NewScheduler(clock Clock, config SchedulerConfig) *Scheduler {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		clock:          clock,
		config:         config,
		logger:         logger,
		lastLagWarning: math.Inf(-1),
		wake:           make(chan struct{}, 1),
	}
}

// Now returns the current clock time.
func (s *Scheduler) Now() float64 {
	return s.clock.CurrentTime()
}

// AfterDelay schedules fn to be called at start+delay.
//
// fn receives the intended time (start+delay), not the time
// it was actually executed at. If that time has already passed,
// fn is executed during the next scheduler pass.
func (s *Scheduler) AfterDelay(start, delay float64, fn func(when float64)) CancelFunc {
	deadline := start + delay
	now := s.clock.CurrentTime()

	t := &timer{fn: fn, deadline: deadline}
	s.mu.Lock()
	s.seq++
	t.seq = s.seq
	heap.Push(&s.queue, t)
	warnLag := delay > 0 && now > deadline && now-s.lastLagWarning >= lagWarningInterval
	if warnLag {
		s.lastLagWarning = now
	}
	s.mu.Unlock()

	if warnLag {
		s.logger.Printf("lag: a timer is %.3fs late", now-deadline)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return func() {
		s.mu.Lock()
		if t.index >= 0 {
			heap.Remove(&s.queue, t.index)
		}
		s.mu.Unlock()
	}
}

// Pending returns the number of scheduled callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	n := len(s.queue)
	s.mu.Unlock()
	return n
}

// Advance executes all callbacks with deadlines up to the specified time.
// Callbacks scheduled during this call are executed as well if they're due.
//
// It returns the number of executed callbacks.
func (s *Scheduler) Advance(until float64) int {
	n := 0
	for n < maxTimersPerAdvance {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].deadline > until {
			s.mu.Unlock()
			break
		}
		t := heap.Pop(&s.queue).(*timer)
		s.mu.Unlock()

		t.fn(t.deadline)
		n++
	}
	if n == maxTimersPerAdvance {
		s.logger.Printf("too many timers are due at %.3f, the rest is postponed", until)
	}
	return n
}

// Run executes the callbacks as the clock goes.
// It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	const maxPollInterval = 20 * time.Millisecond

	for {
		wait := maxPollInterval
		s.mu.Lock()
		if len(s.queue) != 0 {
			d := s.queue[0].deadline - s.config.Lookahead - s.clock.CurrentTime()
			if w := time.Duration(d * float64(time.Second)); w < wait {
				wait = w
			}
		}
		s.mu.Unlock()

		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-s.wake:
			case <-t.C:
			}
			t.Stop()
		} else if err := ctx.Err(); err != nil {
			return err
		}

		s.runDue()
	}
}

func (s *Scheduler) runDue() {
	if s.config.Guard != nil {
		s.config.Guard.Lock()
		defer s.config.Guard.Unlock()
	}
	s.Advance(s.clock.CurrentTime() + s.config.Lookahead)
}

// timerQueue implements heap.Interface.
// Timers are ordered by their deadlines; equal deadlines keep the FIFO order.
type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
