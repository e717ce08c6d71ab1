package tickloop

import (
	"sort"
	"time"
)

// A timer fires once during the first Tick whose clock reading is at or
// past its deadline. Stopped timers are discarded lazily when popped.
type timer struct {
	when    time.Time
	seq     uint64
	fire    func(now time.Time)
	stopped bool
}

// Stop prevents the timer from firing. Safe to call after it fired.
func (tm *timer) Stop() {
	tm.stopped = true
}

func (tm *timer) less(other *timer) bool {
	if !tm.when.Equal(other.when) {
		return tm.when.Before(other.when)
	}
	return tm.seq < other.seq
}

// timerQueue is a deadline-ordered queue. Push keeps the head sorted with
// a binary insert over two backing slices to keep memory moves short.
type timerQueue struct {
	head, tail []*timer
}

func (q *timerQueue) Empty() bool {
	return len(q.head) == 0
}

func (q *timerQueue) Peek() *timer {
	return q.head[0]
}

func (q *timerQueue) Push(v *timer) {
	headsize, tailsize := len(q.head), len(q.tail)

	n := headsize + tailsize

	i := sort.Search(n, func(i int) bool {
		if i < headsize {
			return v.less(q.head[i])
		}

		i -= headsize

		return v.less(q.tail[i])
	})

	if n == cap(q.tail) {
		s := append(q.tail[:n], nil)[:0]

		if i < headsize {
			s = append(s, q.head[:i]...)
			s = append(s, v)
			s = append(s, q.head[i:]...)
			s = append(s, q.tail...)
		} else {
			i -= headsize
			s = append(s, q.head...)
			s = append(s, q.tail[:i]...)
			s = append(s, v)
			s = append(s, q.tail[i:]...)
		}

		q.head, q.tail = s, s[:0]

		return
	}

	if headsize < cap(q.head) {
		s := q.head
		s = s[:headsize+1]
		copy(s[i+1:], s[i:])
		s[i] = v
		q.head = s
		return
	}

	if i < headsize {
		s := q.head
		u := s[headsize-1]
		copy(s[i+1:], s[i:])
		s[i] = v
		v = u
		i = headsize
	}

	i -= headsize

	s := q.tail
	s = s[:tailsize+1]
	copy(s[i+1:], s[i:])
	s[i] = v
	q.tail = s
}

func (q *timerQueue) Pop() (v *timer) {
	q.head[0], v = v, q.head[0]

	if len(q.head) > 1 {
		q.head = q.head[1:]
	} else {
		q.head, q.tail = q.tail, q.tail[:0]
	}

	return v
}

// fire pops and fires every due timer. The due set is collected up front
// so that a timer re-armed by its own callback, possibly with a deadline
// not after now, waits for the next Tick instead of firing again within
// this one.
func (q *timerQueue) fire(now time.Time) {
	var due []*timer
	for !q.Empty() && !q.Peek().when.After(now) {
		due = append(due, q.Pop())
	}
	for _, tm := range due {
		if tm.stopped {
			continue
		}
		tm.fire(now)
	}
}

func (s *Scheduler) after(d time.Duration, fire func(now time.Time)) *timer {
	s.timerSeq++
	tm := &timer{when: s.clock().Add(d), seq: s.timerSeq, fire: fire}
	s.timers.Push(tm)
	return tm
}

// Sleep returns an [Operation] that suspends the Task until d has
// elapsed, as measured at Tick granularity. Sleep(0) resumes on the next
// Tick. If the Task is cancelled while sleeping, the timer is released.
func (s *Scheduler) Sleep(d time.Duration) Operation {
	return s.SleepFor(d, nil)
}

// SleepFor is like [Scheduler.Sleep] but also writes the actually elapsed
// duration to dt when resuming. The elapsed duration is at least d; how
// much more depends on how often the host ticks.
func (s *Scheduler) SleepFor(d time.Duration, dt *time.Duration) Operation {
	return func(t *Task) Result {
		var sig Signal
		start := s.clock()
		tm := s.after(d, func(now time.Time) {
			if dt != nil {
				*dt = now.Sub(start)
			}
			sig.Notify()
		})
		t.Defer(tm.Stop)
		t.Watch(&sig)
		return t.Yield(Nop())
	}
}

// NFrames returns an [Operation] that suspends the Task for n host-loop
// frames. NFrames(0) completes immediately; a negative n is a programming
// error. If you want to wait for a single frame, Sleep(0) is preferable
// for a performance reason.
func (s *Scheduler) NFrames(n int) Operation {
	if n < 0 {
		panic("tickloop: waiting for a negative number of frames")
	}
	return func(t *Task) Result {
		remaining := n
		var step Operation
		step = func(t *Task) Result {
			if remaining == 0 {
				return t.End()
			}
			remaining--
			t.Watch(&s.frame)
			return t.Yield(step)
		}
		return t.Switch(step)
	}
}

// A Ticker provides an efficient way to sleep repeatedly, e.g. to move an
// object every frame. It arms one repeating timer instead of one timer
// per lap, and records the elapsed duration of each lap in a latest-wins
// slot: a Task is free to suspend on other things between waits, at the
// cost of possibly skipping laps.
//
// Stop must be called when done with the Ticker; teardown is deliberately
// explicit rather than left to the garbage collector.
type Ticker struct {
	s       *Scheduler
	step    time.Duration
	elapsed State[time.Duration]
	tm      *timer
	last    time.Time
	stopped bool
}

// NewTicker returns a [Ticker] firing every step. A step of zero fires on
// every Tick.
func (s *Scheduler) NewTicker(step time.Duration) *Ticker {
	if step < 0 {
		panic("tickloop: negative ticker step")
	}
	tk := &Ticker{s: s, step: step, last: s.clock()}
	tk.arm()
	return tk
}

func (tk *Ticker) arm() {
	tk.tm = tk.s.after(tk.step, func(now time.Time) {
		tk.elapsed.Set(now.Sub(tk.last))
		tk.last = now
		if !tk.stopped {
			tk.arm()
		}
	})
}

// Wait returns an [Operation] that suspends the Task until the next lap.
// Use [Ticker.Elapsed] after resuming to read the lap duration.
func (tk *Ticker) Wait() Operation {
	return func(t *Task) Result {
		t.Watch(&tk.elapsed)
		return t.Yield(Nop())
	}
}

// Elapsed returns the duration of the most recent lap.
func (tk *Ticker) Elapsed() time.Duration {
	return tk.elapsed.Get()
}

// Stop disarms the Ticker. Tasks suspended in Wait stay suspended.
func (tk *Ticker) Stop() {
	tk.stopped = true
	if tk.tm != nil {
		tk.tm.Stop()
	}
}
