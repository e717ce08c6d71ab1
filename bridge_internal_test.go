package tickloop

import "testing"

func TestCallDoubleDeliveryPanics(t *testing.T) {
	var s Scheduler

	c := &Call[int]{s: &s}
	c.work(func() (int, error) { return 1, nil })

	defer func() {
		if recover() == nil {
			t.Error("second delivery into one Call did not panic")
		}
	}()
	c.work(func() (int, error) { return 2, nil })
}
