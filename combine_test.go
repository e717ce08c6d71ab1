package tickloop_test

import (
	"testing"
	"time"

	"github.com/tickloop/tickloop"
)

func TestRaceFirstWins(t *testing.T) {
	var s tickloop.Scheduler
	clock := newFakeClock(&s)

	var fast, slow bool
	h := s.Spawn(tickloop.Race(
		tickloop.Chain(s.Sleep(10*time.Millisecond), tickloop.Do(func() { fast = true })),
		tickloop.Chain(s.Sleep(50*time.Millisecond), tickloop.Do(func() { slow = true })),
	))

	clock.advance(10 * time.Millisecond)
	s.Tick()
	s.Tick()

	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if !fast {
		t.Error("winner did not run")
	}

	// The loser was cancelled; its timer must not fire later.
	clock.advance(100 * time.Millisecond)
	s.Tick()
	if slow {
		t.Error("loser ran after losing the race")
	}
}

func TestRaceEmptyNeverCompletes(t *testing.T) {
	var s tickloop.Scheduler

	h := s.Spawn(tickloop.Race())
	for range 3 {
		s.Tick()
	}
	if h.Finished() {
		t.Error("empty race completed")
	}
}

func TestJoinWaitsForAll(t *testing.T) {
	var s tickloop.Scheduler
	clock := newFakeClock(&s)

	done := 0
	mark := func() tickloop.Operation {
		return tickloop.Do(func() { done++ })
	}
	h := s.Spawn(tickloop.Join(
		tickloop.Chain(s.Sleep(10*time.Millisecond), mark()),
		tickloop.Chain(s.Sleep(20*time.Millisecond), mark()),
		tickloop.Chain(s.Sleep(30*time.Millisecond), mark()),
	))

	clock.advance(20 * time.Millisecond)
	s.Tick()
	s.Tick()
	if h.Finished() {
		t.Fatal("join completed with a child still pending")
	}

	clock.advance(10 * time.Millisecond)
	s.Tick()
	s.Tick()
	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if done != 3 {
		t.Errorf("got %d children done, want 3", done)
	}
}

func TestJoinSynchronousChildren(t *testing.T) {
	var s tickloop.Scheduler

	done := 0
	h := s.Spawn(tickloop.Join(
		tickloop.Do(func() { done++ }),
		tickloop.Do(func() { done++ }),
	))

	if h.Status() != tickloop.Done {
		t.Errorf("got status %v, want done", h.Status())
	}
	if done != 2 {
		t.Errorf("got %d children done, want 2", done)
	}
}

func TestJoinEmptyCompletesImmediately(t *testing.T) {
	var s tickloop.Scheduler

	if h := s.Spawn(tickloop.Join()); h.Status() != tickloop.Done {
		t.Errorf("got status %v, want done", h.Status())
	}
}

func TestTimeoutExpires(t *testing.T) {
	var s tickloop.Scheduler
	clock := newFakeClock(&s)

	var timedOut bool
	h := s.Spawn(tickloop.Timeout(&s, 20*time.Millisecond, tickloop.Never(), &timedOut))

	clock.advance(20 * time.Millisecond)
	s.Tick()
	s.Tick()

	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if !timedOut {
		t.Error("timedOut not set after the deadline won")
	}
}

func TestTimeoutOpFinishesFirst(t *testing.T) {
	var s tickloop.Scheduler
	clock := newFakeClock(&s)

	var timedOut bool
	h := s.Spawn(tickloop.Timeout(&s, time.Hour, s.Sleep(5*time.Millisecond), &timedOut))

	clock.advance(5 * time.Millisecond)
	s.Tick()
	s.Tick()

	if h.Status() != tickloop.Done {
		t.Fatalf("got status %v, want done", h.Status())
	}
	if timedOut {
		t.Error("timedOut set although the operation finished in time")
	}
}
