package tickloop

import "slices"

// Semaphore provides a way to bound how many Tasks do something at the
// same time, e.g. how many worker calls are in flight. The callers can
// request access with a given weight.
//
// A Semaphore must not be shared by more than one [Scheduler].
type Semaphore struct {
	size    int64
	cur     int64
	waiters []*waiter
}

// NewSemaphore creates a new weighted semaphore with the given maximum
// combined weight.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{size: n}
}

// Acquire returns an [Operation] that suspends the Task until a weight
// of n is acquired from the semaphore, and then completes. Waiters are
// served in FIFO order. Acquiring more than the semaphore's size never
// completes.
//
// If the Task is cancelled while waiting, its place in the queue is
// given up.
func (s *Semaphore) Acquire(n int64) Operation {
	if n < 0 {
		panic("tickloop(Semaphore): negative weight")
	}
	return func(t *Task) Result {
		if s.size-s.cur < n || len(s.waiters) != 0 {
			if n > s.size {
				return t.Switch(Never())
			}
			w := &waiter{s: s, n: n}
			s.waiters = append(s.waiters, w)
			t.Defer(w.cleanup)
			t.Watch(w)
			return t.Yield(Nop())
		}
		s.cur += n
		return t.End()
	}
}

// Release releases the semaphore with a weight of n.
//
// One should only call this method on the loop thread.
func (s *Semaphore) Release(n int64) {
	if n < 0 {
		panic("tickloop(Semaphore): negative weight")
	}
	s.cur -= n
	if s.cur < 0 {
		panic("tickloop(Semaphore): released more than held")
	}
	s.notifyWaiters()
}

func (s *Semaphore) notifyWaiters() {
	granted := 0
	for _, w := range s.waiters {
		if s.size-s.cur < w.n {
			break
		}
		s.cur += w.n
		w.n = 0
		w.Notify()
		granted++
	}
	s.waiters = slices.Delete(s.waiters, 0, granted)
}

type waiter struct {
	Signal
	s *Semaphore
	n int64
}

// cleanup runs when the waiting Task resumes or unwinds. A waiter whose
// weight was never granted gives up its place in the queue.
func (w *waiter) cleanup() {
	if w.n != 0 {
		w.s.removeWaiter(w)
	}
	w.s = nil
}

func (s *Semaphore) removeWaiter(w *waiter) {
	if i := slices.Index(s.waiters, w); i != -1 {
		s.waiters = slices.Delete(s.waiters, i, i+1)
	}
}
