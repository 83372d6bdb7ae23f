package loop

import (
	"sync"
	"testing"
)

func TestAdvanceDrainsInReceivedOrder(t *testing.T) {
	pump := NewPump()

	var order []int
	pump.Enqueue(func() { order = append(order, 1) })
	pump.Enqueue(func() { order = append(order, 2) })
	pump.Enqueue(func() { order = append(order, 3) })

	pump.Advance()

	if len(order) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(order))
	}
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("callback %d ran out of order: got %d", i, got)
		}
	}
}

func TestEnqueueDuringAdvanceDefersToNextTick(t *testing.T) {
	pump := NewPump()

	nested := false
	pump.Enqueue(func() {
		pump.Enqueue(func() { nested = true })
	})

	pump.Advance()
	if nested {
		t.Fatalf("callback enqueued mid-advance ran on the same tick")
	}
	pump.Advance()
	if !nested {
		t.Fatalf("deferred callback never ran")
	}
}

func TestScheduleAfterFiresOnDueTick(t *testing.T) {
	pump := NewPump()

	fired := false
	pump.ScheduleAfter(2, func() { fired = true })

	pump.Advance()
	if fired {
		t.Fatalf("timer fired one tick early")
	}
	pump.Advance()
	if !fired {
		t.Fatalf("timer did not fire on its due tick")
	}
}

func TestScheduleAfterZeroRunsNextAdvance(t *testing.T) {
	pump := NewPump()

	fired := false
	pump.ScheduleAfter(0, func() { fired = true })
	pump.Advance()
	if !fired {
		t.Fatalf("zero-delay timer did not run on the next advance")
	}
}

func TestCurrentTickCountsAdvances(t *testing.T) {
	pump := NewPump()
	for i := 0; i < 5; i++ {
		pump.Advance()
	}
	if got := pump.CurrentTick(); got != 5 {
		t.Fatalf("expected tick 5, got %d", got)
	}
}

func TestEnqueueFromManyGoroutines(t *testing.T) {
	pump := NewPump()

	const workers = 16
	var wg sync.WaitGroup
	counts := make(chan struct{}, workers*10)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				pump.Enqueue(func() { counts <- struct{}{} })
			}
		}()
	}
	wg.Wait()

	pump.Advance()
	if got := len(counts); got != workers*10 {
		t.Fatalf("expected %d callbacks, got %d", workers*10, got)
	}
}
