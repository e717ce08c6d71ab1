package tickloop

import (
	"fmt"
	"runtime/debug"
)

// Fatal wraps a panic value that task machinery must never intercept.
//
// An ordinary panic inside a [Task] terminates that Task alone and is
// stored on its [Handle]. A panic with a Fatal value instead propagates
// straight out of [Scheduler.Tick], terminating the host loop. Use it for
// conditions after which continuing to tick would be wrong.
type Fatal struct {
	Value any
}

func (f Fatal) Error() string {
	return fmt.Sprintf("tickloop: fatal: %v", f.Value)
}

type capturedPanic struct {
	value any
	stack []byte
}

// pcall runs f, capturing an ordinary panic along with a stack trace.
// A [Fatal] panic is rethrown untouched.
func pcall(f func()) (cp *capturedPanic) {
	done := false
	defer func() {
		if done {
			return
		}
		v := recover()
		if v == nil {
			panic("tickloop: runtime.Goexit is not supported in task code")
		}
		if _, ok := v.(Fatal); ok {
			panic(v)
		}
		cp = &capturedPanic{value: v, stack: debug.Stack()}
	}()
	f()
	done = true
	return nil
}

// A PanicError records an unrecovered panic that terminated a [Task].
// It is stored on the Task's [Handle] and returned by [Handle.Err].
type PanicError struct {
	value any
	stack []byte
}

// Value returns the original panic value, unmodified.
func (e *PanicError) Value() any {
	return e.value
}

// Stack returns the stack trace captured at the point of the panic.
func (e *PanicError) Stack() []byte {
	return e.stack
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.value)
}

// Unwrap makes errors.Is and errors.As see through to the panic value
// when that value is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
