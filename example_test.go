package tickloop_test

import (
	"fmt"
	"time"

	"github.com/tickloop/tickloop"
)

func Example() {
	var s tickloop.Scheduler
	now := time.Unix(0, 0)
	s.SetNow(func() time.Time { return now })

	h := s.Spawn(tickloop.Chain(
		s.Sleep(time.Second),
		tickloop.Do(func() { fmt.Println("one second later") }),
	))

	// The host loop calls Tick once per frame.
	now = now.Add(time.Second)
	s.Tick()

	fmt.Println(h.Status())
	// Output:
	// one second later
	// done
}

func ExampleEach() {
	var s tickloop.Scheduler

	var dispatch func(string)
	subscribe := func(d func(string)) (unsubscribe func()) {
		dispatch = d
		return func() { dispatch = nil }
	}
	classify := func(ev string) tickloop.Class {
		if ev == "up" {
			return tickloop.Terminate
		}
		return tickloop.Continue
	}
	stream := tickloop.NewStream(subscribe, classify)

	s.Spawn(tickloop.Each(stream, func(ev string) tickloop.Operation {
		return tickloop.Do(func() { fmt.Println("got", ev) })
	}))

	dispatch("move")
	s.Tick()
	dispatch("up")
	s.Tick()

	fmt.Println("stream ended")
	// Output:
	// got move
	// stream ended
}

func ExampleInThread() {
	var s tickloop.Scheduler

	h := s.Spawn(func(t *tickloop.Task) tickloop.Result {
		call := tickloop.InThread(&s, func() (int, error) {
			return 6 * 7, nil // blocking work belongs on a worker goroutine
		})
		return t.Switch(call.Await().Then(func(t *tickloop.Task) tickloop.Result {
			v, _ := call.Result()
			fmt.Println("answer:", v)
			return t.End()
		}))
	})

	for !h.Finished() {
		s.Tick()
		time.Sleep(time.Millisecond)
	}
	// Output:
	// answer: 42
}
