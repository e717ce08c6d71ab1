package tickloop

import "time"

// Race returns an [Operation] that runs each of the given Operations in
// its own inner Task and completes as soon as any of them completes.
// The others are cancelled.
//
// When passed no arguments, Race never completes.
func Race(ops ...Operation) Operation {
	if len(ops) == 0 {
		return Never()
	}
	return func(t *Task) Result {
		var sig Signal
		won := false
		for _, op := range ops {
			if won {
				break
			}
			t.Spawn(op.Then(Do(func() {
				won = true
				sig.Notify()
			})))
		}
		if won {
			return t.End()
		}
		t.Watch(&sig)
		return t.Yield(Nop())
	}
}

// Join returns an [Operation] that runs each of the given Operations in
// its own inner Task and completes once all of them have completed.
//
// When passed no arguments, Join completes immediately.
func Join(ops ...Operation) Operation {
	return func(t *Task) Result {
		var wg WaitGroup
		wg.Add(len(ops))
		for _, op := range ops {
			t.Spawn(op.Then(Do(wg.Done)))
		}
		if wg.n == 0 {
			return t.End()
		}
		// Suspend rather than switch: switching would reset the Task and
		// cancel the inner Tasks just spawned.
		t.Watch(&wg)
		return t.Yield(wg.Await())
	}
}

// Timeout returns an [Operation] that runs op but abandons it, cancelling
// whatever it is suspended on, if d elapses first. If timedOut is not
// nil, it is set to report whether the deadline won the race.
func Timeout(s *Scheduler, d time.Duration, op Operation, timedOut *bool) Operation {
	return func(t *Task) Result {
		if timedOut != nil {
			*timedOut = false
		}
		deadline := Chain(s.Sleep(d), Do(func() {
			if timedOut != nil {
				*timedOut = true
			}
		}))
		return t.Switch(Race(op, deadline))
	}
}
