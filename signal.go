package tickloop

// Event is the interface of any type that can be watched by a [Task].
//
// The following types implement Event: [Signal], [State], [WaitGroup] and
// the wait handles of this package's facilities. Any type that embeds
// [Signal] also implements Event.
type Event interface {
	addListener(t *Task)
	removeListener(t *Task)
}

// Signal is a type that implements [Event].
//
// Calling the Notify method of a Signal resumes any [Task] that is
// watching the Signal.
//
// A Signal must not be shared by more than one [Scheduler].
type Signal struct {
	listeners map[*Task]struct{}
}

func (s *Signal) addListener(t *Task) {
	listeners := s.listeners
	if listeners == nil {
		listeners = make(map[*Task]struct{})
		s.listeners = listeners
	}
	listeners[t] = struct{}{}
}

func (s *Signal) removeListener(t *Task) {
	delete(s.listeners, t)
}

// Notify resumes any [Task] that is watching s.
//
// One should only call this method on the loop thread.
func (s *Signal) Notify() {
	for t := range s.listeners {
		t.wake()
	}
}

// A State is a [Signal] that carries a value.
// To retrieve the value, call the Get method.
//
// Calling the Set method of a State updates the value and resumes any
// [Task] that is watching the State. The slot holds one value; setting it
// while no Task is watching simply overwrites the previous value
// (latest wins).
//
// A State must not be shared by more than one [Scheduler].
type State[T any] struct {
	Signal
	value T
}

// NewState creates a new [State] with its initial value set to v.
func NewState[T any](v T) *State[T] {
	return &State[T]{value: v}
}

// Get retrieves the value of s.
func (s *State[T]) Get() T {
	return s.value
}

// Set updates the value of s and resumes any [Task] that is watching s.
//
// One should only call this method on the loop thread.
func (s *State[T]) Set(v T) {
	s.value = v
	s.Notify()
}

// Update sets the value of s to f(s.Get()) and resumes any [Task] that
// is watching s.
//
// One should only call this method on the loop thread.
func (s *State[T]) Update(f func(v T) T) {
	s.Set(f(s.value))
}
