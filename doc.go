// Package tickloop is a cooperative task scheduler for programs that are
// driven by a host event loop, such as a GUI or TUI frame loop.
//
// A [Scheduler] does not own a loop of its own. The host calls
// [Scheduler.Tick] once per frame, and that single entry point is all the
// integration the Scheduler requires. Everything else — timers, worker
// results, event streams — is funneled through Tick and delivered on the
// host loop's thread, in a single-threaded manner.
//
// # Tasks
//
// A [Task] is spawned with an [Operation], an ordinary function with
// explicit suspension points. The return value of an Operation, a [Result],
// tells the Task what to do next: end, suspend until an [Event] notifies,
// or switch to another Operation. A Task runs uninterrupted between
// suspension points; there is no preemption.
//
// Spawning returns a [Handle], which is the only way the outside world may
// observe a Task: its [Status], its recorded value or error, and a Cancel
// method. Cancellation is cooperative and takes effect at the Task's next
// suspension point, after which deferred cleanups still run. A Task that
// never suspends cannot be cancelled.
//
// An unrecovered panic in a Task terminates that Task alone. It is stored
// on the Handle and reported through the Scheduler's logger; sibling Tasks
// are unaffected. The one exception is a panic value wrapped in [Fatal],
// which this machinery never intercepts: it propagates straight out of
// [Scheduler.Tick].
//
// # Worker goroutines
//
// Blocking calls must not run on the loop thread. [InThread] and [InPool]
// run a function on a worker goroutine, capture its return value, error or
// panic exactly once, and resume the awaiting Task on the loop thread
// during a future Tick. An error returned by the function is observed with
// [Call.Result]; a panic is re-raised, value unmodified, at the suspension
// point.
//
// # Event streams
//
// A [Stream] adapts a host event source into something a Task can iterate.
// Each event is classified as continue-class, terminate-class, or skipped.
// Continue-class events yield values; a terminate-class event ends the
// iteration immediately and unconditionally, even if it arrives while the
// iteration body is suspended on something else.
//
// Continue-class events are buffered in a single latest-wins slot. If the
// body suspends between iterations, continue-class events that arrive
// during that suspension are not queued; only the most recent one is
// observed. This is an intentional, documented relaxation: earlier designs
// of this kind of API forbade suspension inside the loop body altogether,
// and queueing would silently change the observable semantics. Terminate
// events, by contrast, are never missed.
//
// # Threading
//
// Exactly one goroutine — the one driving the host loop — may call Tick,
// Spawn, Handle methods, and anything else in this package, with a single
// exception: the function given to InThread or InPool runs on a worker
// goroutine, and its result crosses back through a write-once slot drained
// only during Tick.
package tickloop
