package tickloop

import (
	"log/slog"
	"sync"
	"time"
)

// A Scheduler owns a set of live Tasks and drives them forward once per
// host-loop frame. It does not run a loop of its own: the host must call
// the Tick method, and Tick is the Scheduler's only integration point.
//
// The zero value of Scheduler is ready to use.
//
// All methods are loop-thread only; the sole cross-thread traffic is the
// write-once result slot of [InThread] and [InPool], which is drained
// during Tick.
type Scheduler struct {
	mu      sync.Mutex
	ready   []*Task
	pending []func()

	timers   timerQueue
	timerSeq uint64

	frame Signal

	now    func() time.Time
	last   time.Time
	logger *slog.Logger
	nextID uint64
}

// SetLogger sets the logger used to report unhandled Task failures.
// If never called, [slog.Default] is used.
func (s *Scheduler) SetLogger(l *slog.Logger) {
	s.logger = l
}

// SetNow sets the clock used for timers and frame deltas. Intended for
// tests; if never called, [time.Now] is used.
func (s *Scheduler) SetNow(f func() time.Time) {
	s.now = f
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) nextTaskID() uint64 {
	s.nextID++
	return s.nextID
}

// Spawn creates a [Task] to work on op and runs it immediately, on the
// calling goroutine, up to its first suspension point. The returned
// [Handle] observes the Task's completion, value, error and cancellation.
//
// Spawn must be called on the loop thread. To start work from a worker
// goroutine, deliver a result through [InThread] first and spawn from the
// awaiting Task.
func (s *Scheduler) Spawn(op Operation) *Handle {
	t := &Task{sched: s, id: s.nextTaskID(), op: must(op), flag: flagStale}
	h := &Handle{task: t}
	t.handle = h
	t.run()
	return h
}

// Tick resumes every Task whose wait condition has been satisfied, in
// FIFO order of readiness. The host loop must invoke it once per frame.
//
// A Tick first delivers worker results, then fires due timers, then runs
// the ready set. Tasks that become ready while the ready set is being run
// are resumed on the next Tick; within one Tick a Task is resumed at most
// once.
//
// Tick never panics for Task-level errors. A [Fatal] panic, however,
// propagates out of Tick immediately.
func (s *Scheduler) Tick() {
	now := s.clock()
	s.last = now

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, deliver := range pending {
		deliver()
	}

	s.timers.fire(now)

	s.frame.Notify()

	s.mu.Lock()
	ready := s.ready
	s.ready = nil
	s.mu.Unlock()

	for _, t := range ready {
		s.runReady(t)
	}
}

func (s *Scheduler) enqueue(t *Task) {
	s.mu.Lock()
	s.ready = append(s.ready, t)
	s.mu.Unlock()
}

// deliver hands a worker completion to the loop thread. It is the only
// method safe to call from another goroutine.
func (s *Scheduler) deliver(f func()) {
	s.mu.Lock()
	s.pending = append(s.pending, f)
	s.mu.Unlock()
}

func (s *Scheduler) runReady(t *Task) {
	flag := t.flag
	flag &^= flagWoken
	t.flag = flag

	if flag&flagEnded != 0 {
		return
	}

	if flag&flagStale == 0 && flag&flagCanceled == 0 {
		return
	}

	t.run()
}
