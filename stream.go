package tickloop

// Class is the classification of a host event with respect to a [Stream].
type Class int

const (
	// Skip events are invisible to the iteration.
	Skip Class = iota
	// Continue events yield a value without ending the iteration.
	Continue
	// Terminate events end the iteration immediately and unconditionally.
	Terminate
)

// A Subscribe function registers a dispatch callback with the host event
// source and returns the matching unsubscribe function. The host must
// invoke the callback synchronously, on the loop thread, whenever an
// event occurs.
type Subscribe[T any] func(dispatch func(T)) (unsubscribe func())

// A Stream adapts a host event source into a sequence a [Task] can
// iterate. classify assigns each incoming event to a [Class].
//
// Continue-class events are buffered in a single latest-wins slot per
// iteration: events that arrive while the consumer is not awaiting are
// dropped in favor of the most recent one. This is the documented
// "missed events during suspension" tradeoff — do not rely on every
// continue-class event being observed. Terminate-class events are never
// missed.
type Stream[T any] struct {
	subscribe Subscribe[T]
	classify  func(T) Class
}

// NewStream returns a [Stream] over the given source and classification.
func NewStream[T any](subscribe Subscribe[T], classify func(T) Class) *Stream[T] {
	if subscribe == nil || classify == nil {
		panic("tickloop: NewStream called with nil argument")
	}
	return &Stream[T]{subscribe: subscribe, classify: classify}
}

type iterState int

const (
	iterIdle iterState = iota
	iterSubscribed
	iterYielding
	iterTerminated
	iterCanceled
)

// An Iter is one cancellable iteration over a [Stream]. The subscription
// lasts from the first Next to a terminate-class event or a call to Stop,
// whichever comes first; both are absorbing. It is also bounded by the
// Task that first calls Next: when that Task finishes, for any reason,
// the source is unsubscribed.
//
// Most consumers want [Each] instead, which also gives terminate-class
// events the power to interrupt a suspended loop body.
type Iter[T any] struct {
	st    *Stream[T]
	state iterState
	unsub func()

	// sig notifies awaiting consumers of a buffered continue event;
	// term stays live for the whole iteration so that terminate-class
	// events can interrupt whatever the consumer is suspended on.
	sig  Signal
	term Signal

	latest     T
	haveLatest bool

	value T
	ok    bool
}

// Iter begins a new iteration over st. The subscription is established
// lazily, on the first [Iter.Next].
func (st *Stream[T]) Iter() *Iter[T] {
	return &Iter[T]{st: st}
}

func (it *Iter[T]) start() {
	it.unsub = it.st.subscribe(it.dispatch)
	it.state = iterSubscribed
}

func (it *Iter[T]) dispatch(v T) {
	if it.state == iterTerminated || it.state == iterCanceled {
		return
	}
	switch it.st.classify(v) {
	case Continue:
		// Latest wins; an unconsumed previous event is dropped.
		it.latest = v
		it.haveLatest = true
		it.sig.Notify()
	case Terminate:
		it.terminate()
	}
}

func (it *Iter[T]) terminate() {
	it.state = iterTerminated
	it.haveLatest = false
	it.teardown()
	it.term.Notify()
	it.sig.Notify()
}

func (it *Iter[T]) teardown() {
	if u := it.unsub; u != nil {
		it.unsub = nil
		u()
	}
}

// Stop abandons the iteration and unsubscribes from the source. It is
// idempotent and safe to call at any point. Tasks suspended in Next stay
// suspended.
func (it *Iter[T]) Stop() {
	if it.state == iterTerminated || it.state == iterCanceled {
		return
	}
	it.state = iterCanceled
	it.haveLatest = false
	it.teardown()
}

// Next returns an [Operation] that suspends the Task until either a
// continue-class event is available, after which [Iter.Ok] reports true
// and [Iter.Value] returns the event, or the iteration has ended, after
// which Ok reports false.
func (it *Iter[T]) Next() Operation {
	return func(t *Task) Result {
		switch it.state {
		case iterIdle:
			it.start()
			t.Finally(it.Stop)
		case iterYielding:
			it.state = iterSubscribed
		case iterTerminated, iterCanceled:
			it.ok = false
			return t.End()
		}
		if it.haveLatest {
			it.value, it.haveLatest = it.latest, false
			it.ok = true
			it.state = iterYielding
			return t.End()
		}
		t.Watch(&it.sig)
		return t.Await()
	}
}

// Ok reports whether the last [Iter.Next] yielded a value. Once it
// reports false the iteration is over and Next completes immediately.
func (it *Iter[T]) Ok() bool {
	return it.ok
}

// Value returns the event yielded by the last [Iter.Next].
func (it *Iter[T]) Value() T {
	return it.value
}

// Each returns an [Operation] that runs body for continue-class events of
// st until a terminate-class event arrives, and then completes normally.
//
// The body runs as an inner Task, so it may itself suspend — sleep, await
// a worker result, consume another stream. Continue-class events that
// occur during such an inner suspension are subject to the latest-wins
// buffer and may be missed. A terminate-class event is never missed: it
// cancels the in-flight body, before whatever the body was suspended on
// resolves, and ends the loop.
//
// If the Task is cancelled, the subscription is torn down during unwind.
func Each[T any](st *Stream[T], body func(v T) Operation) Operation {
	if body == nil {
		panic("tickloop: Each called with nil body")
	}
	return func(t *Task) Result {
		it := st.Iter()
		t.Finally(it.Stop)

		var bodyDone Signal
		var step, rejoin Operation

		step = func(t *Task) Result {
			switch it.state {
			case iterIdle:
				it.start()
			case iterYielding:
				it.state = iterSubscribed
			case iterTerminated, iterCanceled:
				return t.End()
			}
			if it.haveLatest {
				v := it.latest
				it.haveLatest = false
				it.state = iterYielding

				finished := false
				t.Spawn(body(v).Then(Do(func() {
					finished = true
					bodyDone.Notify()
				})))
				if finished {
					return t.Switch(step)
				}
				t.Watch(&bodyDone)
				t.Watch(&it.term)
				return t.Yield(rejoin)
			}
			t.Watch(&it.sig)
			t.Watch(&it.term)
			return t.Await()
		}

		// Resumed either because the body finished or because a
		// terminate-class event interrupted it; in the latter case the
		// suspended body has already been cancelled.
		rejoin = func(t *Task) Result {
			return t.Switch(step)
		}

		return t.Switch(step)
	}
}
