package tickloop_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tickloop/tickloop"
)

// tickUntil drives s with real ticks until cond holds.
func tickUntil(t *testing.T, s *tickloop.Scheduler, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		s.Tick()
		time.Sleep(time.Millisecond)
	}
}

func TestInThreadResult(t *testing.T) {
	var s tickloop.Scheduler

	h := s.Spawn(func(task *tickloop.Task) tickloop.Result {
		call := tickloop.InThread(&s, func() (int, error) {
			return 1 + 1, nil
		})
		return task.Switch(call.Await().Then(func(task *tickloop.Task) tickloop.Result {
			v, err := call.Result()
			if err != nil {
				t.Errorf("got error %v, want nil", err)
			}
			return task.Complete(v)
		}))
	})

	tickUntil(t, &s, h.Finished)

	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if h.Value() != 2 {
		t.Errorf("got value %v, want 2", h.Value())
	}
}

func TestInThreadError(t *testing.T) {
	var s tickloop.Scheduler

	errBoom := errors.New("boom")

	h := s.Spawn(func(task *tickloop.Task) tickloop.Result {
		call := tickloop.InThread(&s, func() (int, error) {
			return 0, errBoom
		})
		return task.Switch(call.Await().Then(func(task *tickloop.Task) tickloop.Result {
			// The worker's error crosses the thread boundary as a
			// value, not as a panic.
			if _, err := call.Result(); errors.Is(err, errBoom) {
				return task.Complete("caught")
			}
			return task.Complete("missed")
		}))
	})

	tickUntil(t, &s, h.Finished)

	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if h.Value() != "caught" {
		t.Errorf("got value %v, want caught", h.Value())
	}
}

type explosion struct{ reason string }

func TestInThreadPanicRethrownAtSuspensionPoint(t *testing.T) {
	var s tickloop.Scheduler
	s.SetLogger(quietLogger())

	boom := explosion{reason: "worker blew up"}

	h := s.Spawn(func(task *tickloop.Task) tickloop.Result {
		call := tickloop.InThread(&s, func() (int, error) {
			panic(boom)
		})
		return task.Switch(call.Await().Then(tickloop.Do(func() {
			t.Error("task ran past the re-raised panic")
		})))
	})

	tickUntil(t, &s, h.Finished)

	if h.Status() != tickloop.Failed {
		t.Fatalf("got status %v, want failed", h.Status())
	}
	var pe *tickloop.PanicError
	if !errors.As(h.Err(), &pe) {
		t.Fatalf("got error %v, want a PanicError", h.Err())
	}
	if pe.Value() != boom {
		t.Errorf("got panic value %v, want the original, unmodified", pe.Value())
	}
}

type goPool struct{ spawned int }

func (p *goPool) Go(f func()) {
	p.spawned++
	go f()
}

func TestInPool(t *testing.T) {
	var s tickloop.Scheduler
	pool := new(goPool)

	h := s.Spawn(func(task *tickloop.Task) tickloop.Result {
		call := tickloop.InPool(&s, pool, func() (string, error) {
			return "pooled", nil
		})
		return task.Switch(call.Await().Then(func(task *tickloop.Task) tickloop.Result {
			v, _ := call.Result()
			return task.Complete(v)
		}))
	})

	tickUntil(t, &s, h.Finished)

	if h.Value() != "pooled" {
		t.Errorf("got value %v, want pooled", h.Value())
	}
	if pool.spawned != 1 {
		t.Errorf("pool spawned %d workers, want 1", pool.spawned)
	}
}

func TestCallResultObservedOnlyDuringTick(t *testing.T) {
	var s tickloop.Scheduler

	started := make(chan struct{})
	release := make(chan struct{})

	resumed := false
	s.Spawn(func(task *tickloop.Task) tickloop.Result {
		call := tickloop.InThread(&s, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
		return task.Switch(call.Await().Then(tickloop.Do(func() { resumed = true })))
	})

	<-started
	s.Tick()
	if resumed {
		t.Fatal("task resumed before the worker finished")
	}

	close(release)
	tickUntil(t, &s, func() bool { return resumed })
}
