package tickloop

import (
	"errors"
	"log/slog"
)

const (
	doEnd = iota
	doYield
	doSwitch
)

const (
	flagStale = 1 << iota
	flagWoken
	flagEnded
	flagCanceled
)

// Status describes where a [Task] is in its life cycle.
type Status int32

const (
	// Ready means the Task is runnable and will be resumed by a Tick.
	Ready Status = iota
	// Suspended means the Task is parked at a suspension point.
	Suspended
	// Done means the Task completed normally.
	Done
	// Canceled means the Task was unwound by Handle.Cancel.
	Canceled
	// Failed means an unrecovered panic terminated the Task.
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Suspended:
		return "suspended"
	case Done:
		return "done"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrCanceled is stored on a [Handle] whose [Task] was cancelled.
var ErrCanceled = errors.New("tickloop: task canceled")

// A Task is an execution of code, similar to a goroutine but cooperative
// and stackless, owned by a [Scheduler] for its whole life.
//
// A Task is created with a function called [Operation].
// When a [Scheduler] spawns a Task, it runs the Task by calling the
// Operation function with the Task as the argument. The return value
// determines whether to end the Task or to suspend it so that it could
// resume later.
//
// In order for a suspended Task to resume, the Task must watch at least
// one [Event] when calling the Operation function. A notification of such
// an Event resumes the Task; the Scheduler then runs the Operation again
// during a Tick.
//
// A Task can also switch to work on another Operation according to the
// return value of the current one; that is how a suspension point
// continues with different code instead of re-running from the top.
type Task struct {
	sched   *Scheduler
	id      uint64
	op      Operation
	flag    uint8
	deps    map[Event]bool
	inners  []innerOrFunc
	finals  []func()
	outer   *Task
	handle  *Handle
	pending *capturedPanic // panic propagated from an inner Task
}

type innerOrFunc struct {
	t *Task
	f func()
}

// A Handle is the outside view of a spawned [Task]: its status, recorded
// value or error, and cancellation. It stays valid after the Task ends.
//
// A Handle must only be used on the loop thread.
type Handle struct {
	task   *Task // nil once the Task has finished
	status Status
	value  any
	err    error
	done   Signal
}

// Status returns the current status of the Task.
func (h *Handle) Status() Status {
	return h.status
}

// Finished reports whether the Task has reached a terminal status.
func (h *Handle) Finished() bool {
	return h.status == Done || h.status == Canceled || h.status == Failed
}

// Value returns the value recorded with [Task.Complete], if any.
func (h *Handle) Value() any {
	return h.value
}

// Err returns [ErrCanceled] for a cancelled Task, a [*PanicError] for a
// failed one, and nil otherwise.
func (h *Handle) Err() error {
	return h.err
}

// Cancel requests cooperative cancellation. The Task unwinds at its next
// suspension point; deferred cleanups still run. Cancelling a finished
// Task is a no-op.
func (h *Handle) Cancel() {
	t := h.task
	if t == nil || t.flag&flagEnded != 0 {
		return
	}
	t.flag |= flagCanceled
	t.wake()
}

// Await returns an [Operation] that suspends the calling Task until the
// Task behind h finishes.
func (h *Handle) Await() Operation {
	return func(t *Task) Result {
		if h.Finished() {
			return t.End()
		}
		return t.Await(&h.done)
	}
}

func (t *Task) setStatus(st Status) {
	if h := t.handle; h != nil {
		h.status = st
	}
}

func (t *Task) wake() {
	flag := t.flag
	if flag&flagEnded != 0 {
		return
	}
	if flag&flagWoken != 0 {
		t.flag = flag | flagStale
		return
	}
	t.flag = flag | flagStale | flagWoken
	t.setStatus(Ready)
	t.sched.enqueue(t)
}

func (t *Task) run() {
	if cp := t.pending; cp != nil {
		t.pending = nil
		t.fail(cp)
		return
	}

	if t.flag&flagCanceled != 0 {
		t.finishCanceled()
		return
	}

	{
		deps := t.deps
		for d := range deps {
			deps[d] = false
		}
	}

	var res Result

	for {
		t.clearInners()

		t.flag &^= flagStale | flagEnded

		cp := pcall(func() { res = t.op(t) })
		if cp == nil && t.pending != nil {
			cp, t.pending = t.pending, nil
		}
		if cp != nil {
			t.fail(cp)
			return
		}

		if res.op != nil {
			t.op = res.op
		}

		// Cancellation is observed at suspension points only.
		if res.action == doYield && t.flag&flagCanceled != 0 {
			t.finishCanceled()
			return
		}

		if res.action != doSwitch {
			break
		}

		t.clearDeps()
	}

	if res.action != doEnd {
		deps := t.deps
		for d, inUse := range deps {
			if !inUse {
				delete(deps, d)
				d.removeListener(t)
			}
		}
	}

	if res.action == doEnd || len(t.deps) == 0 && len(t.inners) == 0 {
		t.finish(Done, res.value)
		return
	}

	t.setStatus(Suspended)
}

// end cancels an inner Task when its outer one resumes or unwinds.
func (t *Task) end() {
	if t.flag&flagEnded != 0 {
		return
	}
	t.flag |= flagCanceled
	t.finishCanceled()
}

func (t *Task) finishCanceled() {
	if t.flag&flagEnded != 0 {
		return
	}
	t.flag |= flagEnded
	t.clearDeps()
	t.clearInners()
	t.runFinals()
	if h := t.handle; h != nil {
		h.status = Canceled
		h.err = ErrCanceled
		h.task = nil
		h.done.Notify()
	}
}

func (t *Task) finish(st Status, v any) {
	if t.flag&flagEnded != 0 {
		return
	}
	t.flag |= flagEnded
	t.clearDeps()
	t.clearInners()
	t.runFinals()
	if cp := t.pending; cp != nil {
		// A cleanup or an inner Task panicked during teardown.
		t.pending = nil
		t.flag &^= flagEnded
		t.fail(cp)
		return
	}
	if h := t.handle; h != nil {
		h.status = st
		h.value = v
		h.task = nil
		h.done.Notify()
	}
}

func (t *Task) fail(cp *capturedPanic) {
	if t.flag&flagEnded != 0 {
		return
	}
	t.flag |= flagEnded
	t.clearDeps()
	t.clearInners()
	t.runFinals()
	t.pending = nil

	if outer := t.outer; outer != nil {
		// Inner Tasks propagate panics to their outer Task.
		if outer.flag&flagEnded == 0 {
			outer.pending = cp
			outer.wake()
		}
		return
	}

	err := &PanicError{value: cp.value, stack: cp.stack}
	if h := t.handle; h != nil {
		h.status = Failed
		h.err = err
		h.task = nil
		h.done.Notify()
	}
	t.sched.log().Error("task failed",
		slog.Uint64("task", t.id),
		slog.Any("panic", cp.value),
		slog.String("stack", string(cp.stack)))
}

func (t *Task) clearDeps() {
	deps := t.deps
	for d := range deps {
		delete(deps, d)
		d.removeListener(t)
	}
}

func (t *Task) clearInners() {
	inners := t.inners
	t.inners = inners[:0]

	for i := len(inners) - 1; i >= 0; i-- {
		switch v := inners[i]; {
		case v.t != nil:
			v.t.end()
		case v.f != nil:
			if cp := pcall(v.f); cp != nil && t.pending == nil {
				t.pending = cp
			}
		}
	}

	clear(inners)
}

func (t *Task) runFinals() {
	finals := t.finals
	t.finals = nil

	for i := len(finals) - 1; i >= 0; i-- {
		if cp := pcall(finals[i]); cp != nil && t.pending == nil {
			t.pending = cp
		}
	}
}

// Scheduler returns the [Scheduler] that spawned t.
func (t *Task) Scheduler() *Scheduler {
	return t.sched
}

// Watch watches some Events so that, when any of them notifies, t resumes.
func (t *Task) Watch(s ...Event) {
	deps := t.deps
	if deps == nil {
		deps = make(map[Event]bool)
		t.deps = deps
	}

	for _, d := range s {
		if _, ok := deps[d]; ok {
			deps[d] = true
			continue
		}

		deps[d] = true
		d.addListener(t)
	}
}

// Defer adds a function call when t resumes or ends, or when t is
// switching to work on another [Operation]. Use it to release whatever
// the current suspension armed, e.g. to stop a timer.
func (t *Task) Defer(f func()) {
	t.inners = append(t.inners, innerOrFunc{f: f})
}

// Finally adds a function call when t finishes, whether it ends normally,
// is cancelled, or fails. Finally functions run in last-in-first-out
// order. Use it for cleanups that must outlive individual suspensions,
// e.g. to unsubscribe from an event source.
func (t *Task) Finally(f func()) {
	t.finals = append(t.finals, f)
}

// Spawn creates an inner [Task] to work on op and runs it immediately up
// to its first suspension point.
//
// Inner Tasks are cancelled automatically when the outer one resumes or
// ends, or when the outer one is switching to work on another Operation.
// That property is what gives terminate-class events and deadlines their
// power to interrupt an in-flight suspension.
func (t *Task) Spawn(op Operation) {
	// outer must be set before the first run so that a panic during it
	// reaches t instead of being dropped.
	inner := &Task{sched: t.sched, id: t.sched.nextTaskID(), op: must(op), flag: flagStale, outer: t}
	inner.run()

	if inner.flag&flagEnded == 0 {
		t.inners = append(t.inners, innerOrFunc{t: inner})
	}
}

// Result is the type of the return value of an [Operation] function.
// A Result determines what next for a [Task] to do after calling an
// Operation function.
//
// A Result can be created by calling one of the following methods of Task:
//   - [Task.End]: for ending a Task;
//   - [Task.Complete]: for ending a Task, recording a value on its Handle;
//   - [Task.Await]: for suspending a Task with additional Events to watch;
//   - [Task.Yield]: for suspending a Task with another Operation to which
//     it will switch when resumed;
//   - [Task.Switch]: for switching to another Operation immediately.
type Result struct {
	action int
	op     Operation
	value  any
}

// End returns a [Result] that will cause t to end, or to move on to the
// next [Operation] in a [Chain].
func (t *Task) End() Result {
	return Result{action: doEnd}
}

// Complete is like [Task.End] but also records v as the Task's value,
// observable via [Handle.Value].
func (t *Task) Complete(v any) Result {
	return Result{action: doEnd, value: v}
}

// Await returns a [Result] that will cause t to suspend. When resumed,
// the current Operation is called again from the top.
// Await also accepts additional Events to be watched.
func (t *Task) Await(s ...Event) Result {
	if len(s) != 0 {
		t.Watch(s...)
	}
	return Result{action: doYield}
}

// Yield returns a [Result] that will cause t to suspend. op becomes the
// current Operation of t so that, when t is resumed, op is called instead.
func (t *Task) Yield(op Operation) Result {
	return Result{action: doYield, op: must(op)}
}

// Switch returns a [Result] that will cause t to switch to work on op.
// t is reset and op is called immediately as the current Operation of t.
func (t *Task) Switch(op Operation) Result {
	return Result{action: doSwitch, op: must(op)}
}

// An Operation is a piece of work that a [Task] is given to do when it is
// spawned. The return value of an Operation, a [Result], determines what
// next for a Task to do.
//
// The argument t must not escape to another goroutine.
type Operation func(t *Task) Result

func must(op Operation) Operation {
	if op == nil {
		panic("tickloop: nil Operation")
	}
	return op
}

// Chain returns an [Operation] that works on each of the provided
// Operations in sequence. When one Operation completes, Chain works on
// the next. The value recorded by the final Operation, if any, becomes
// the Task's value.
func Chain(s ...Operation) Operation {
	var op Operation
	return func(t *Task) Result {
		if op == nil {
			if len(s) == 0 {
				return t.End()
			}
			op, s = s[0], s[1:]
		}
		switch res := op(t); res.action {
		case doEnd:
			op = nil
			if len(s) == 0 {
				return res
			}
			return Result{action: doSwitch}
		case doYield, doSwitch:
			if res.op != nil {
				op = res.op
			}
			return Result{action: res.action}
		default:
			panic("tickloop: internal error: unknown action")
		}
	}
}

// Then returns an [Operation] that first works on op, then switches to
// work on next after op completes.
//
// To chain more than two Operations, use the [Chain] function.
func (op Operation) Then(next Operation) Operation {
	if next == nil {
		panic("tickloop: Then(nil): undefined behavior")
	}
	return func(t *Task) Result {
		switch res := op(t); res.action {
		case doEnd:
			return Result{action: doSwitch, op: next}
		case doYield, doSwitch:
			if res.op != nil {
				op = res.op
			}
			return Result{action: res.action}
		default:
			panic("tickloop: internal error: unknown action")
		}
	}
}

// Do returns an [Operation] that calls f, and then completes.
func Do(f func()) Operation {
	return func(t *Task) Result {
		f()
		return t.End()
	}
}

// Nop returns an [Operation] that completes without doing anything.
func Nop() Operation {
	return (*Task).End
}

// Never returns an [Operation] that suspends forever. It only completes
// by cancellation.
func Never() Operation {
	return func(t *Task) Result {
		return t.Await(new(Signal))
	}
}
