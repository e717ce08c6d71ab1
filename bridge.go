package tickloop

import "sync/atomic"

// A Pool runs a function on some worker goroutine. Anything that can do
// that is an acceptable pool; completion is signalled by the function
// returning.
type Pool interface {
	Go(f func())
}

// A Call is the in-flight execution of a function on a worker goroutine,
// created by [InThread] or [InPool]. Its result slot is written exactly
// once, by the worker, and observed on the loop thread during a Tick.
type Call[T any] struct {
	s         *Scheduler
	sig       Signal
	settled   bool
	value     T
	err       error
	panicked  *capturedPanic
	delivered atomic.Bool
}

// InThread runs fn on a fresh goroutine and returns a [Call] for awaiting
// its result. The calling Task suspends with [Call.Await] and is resumed
// on the loop thread, during a future Tick, once fn has returned.
//
// The error returned by fn crosses the thread boundary as a value and is
// read with [Call.Result]. A panic raised by fn is captured on the worker
// and re-raised, unmodified, at the awaiting Task's suspension point, so
// it terminates the awaiting Task exactly as a synchronous panic would.
func InThread[T any](s *Scheduler, fn func() (T, error)) *Call[T] {
	c := &Call[T]{s: s}
	go c.work(fn)
	return c
}

// InPool is identical to [InThread] except that the worker goroutine is
// obtained from pool rather than created fresh.
func InPool[T any](s *Scheduler, pool Pool, fn func() (T, error)) *Call[T] {
	c := &Call[T]{s: s}
	pool.Go(func() { c.work(fn) })
	return c
}

func (c *Call[T]) work(fn func() (T, error)) {
	c.panicked = pcall(func() { c.value, c.err = fn() })

	if !c.delivered.CompareAndSwap(false, true) {
		panic("tickloop: call result delivered twice")
	}

	c.s.deliver(func() {
		c.settled = true
		c.sig.Notify()
	})
}

// Await returns an [Operation] that suspends the Task until the worker
// has delivered its result. If the worker panicked, the panic is
// re-raised here; otherwise read the result with [Call.Result] after
// Await completes.
func (c *Call[T]) Await() Operation {
	return func(t *Task) Result {
		if !c.settled {
			return t.Await(&c.sig)
		}
		if cp := c.panicked; cp != nil {
			panic(cp.value)
		}
		return t.End()
	}
}

// Result returns the worker function's return values. It is only
// meaningful after [Call.Await] has completed.
func (c *Call[T]) Result() (T, error) {
	return c.value, c.err
}
