package tickloop_test

import (
	"testing"

	"github.com/tickloop/tickloop"
)

func TestSemaphoreBoundsAndFIFO(t *testing.T) {
	var s tickloop.Scheduler
	sema := tickloop.NewSemaphore(1)

	var release tickloop.Signal
	var order []int

	holder := func(id int) tickloop.Operation {
		return tickloop.Chain(
			sema.Acquire(1),
			tickloop.Do(func() { order = append(order, id) }),
			waitFor(&release),
			tickloop.Do(func() { sema.Release(1) }),
		)
	}

	h1 := s.Spawn(holder(1))
	s.Spawn(holder(2))
	h3 := s.Spawn(holder(3))

	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("got order %v, want [1] while the first holder has the weight", order)
	}

	release.Notify()
	s.Tick() // holder 1 releases; the weight passes to holder 2
	s.Tick() // holder 2 proceeds
	if h1.Status() != tickloop.Done {
		t.Fatalf("got first holder status %v, want done", h1.Status())
	}
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("got order %v, want [1 2]; waiters must be served FIFO", order)
	}

	release.Notify()
	s.Tick() // holder 2 releases; the weight passes to holder 3
	s.Tick() // holder 3 proceeds
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("got order %v, want [1 2 3]", order)
	}

	release.Notify()
	s.Tick()
	if h3.Status() != tickloop.Done {
		t.Errorf("got last holder status %v, want done", h3.Status())
	}
}

func TestSemaphoreOverweightNeverCompletes(t *testing.T) {
	var s tickloop.Scheduler
	sema := tickloop.NewSemaphore(2)

	h := s.Spawn(sema.Acquire(3))
	for range 3 {
		s.Tick()
	}
	if h.Finished() {
		t.Error("acquiring more than the semaphore size completed")
	}
}

func TestSemaphoreCanceledWaiterGivesUpPlace(t *testing.T) {
	var s tickloop.Scheduler
	sema := tickloop.NewSemaphore(1)

	var release tickloop.Signal
	s.Spawn(tickloop.Chain(
		sema.Acquire(1),
		waitFor(&release),
		tickloop.Do(func() { sema.Release(1) }),
	))

	acquired2 := false
	h2 := s.Spawn(tickloop.Chain(
		sema.Acquire(1),
		tickloop.Do(func() { acquired2 = true }),
	))
	acquired3 := false
	s.Spawn(tickloop.Chain(
		sema.Acquire(1),
		tickloop.Do(func() { acquired3 = true }),
	))

	h2.Cancel()
	s.Tick()
	if h2.Status() != tickloop.Canceled {
		t.Fatalf("got status %v, want canceled", h2.Status())
	}

	release.Notify()
	s.Tick() // the holder releases; the weight skips the cancelled waiter
	s.Tick()

	if acquired2 {
		t.Error("cancelled waiter acquired the weight")
	}
	if !acquired3 {
		t.Error("next waiter was not granted the weight given up by the cancelled one")
	}
}
