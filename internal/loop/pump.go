package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pump owns the client's single logical thread. Transport goroutines hand
// callbacks over with Enqueue; Advance drains them once per tick, in received
// order, fully processing each before the next. Deferred work is a value with
// an explicit due tick rather than an implicit suspension point.
type Pump struct {
	mu      sync.Mutex
	pending []func()
	timers  []scheduled
	tick    atomic.Uint64
}

type scheduled struct {
	due uint64
	fn  func()
}

func NewPump() *Pump {
	return &Pump{
		pending: make([]func(), 0, 64),
	}
}

// Enqueue queues a callback for the next Advance. Safe from any goroutine.
func (p *Pump) Enqueue(fn func()) {
	if p == nil || fn == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, fn)
	p.mu.Unlock()
}

// ScheduleAfter queues a callback to run on the tick that is delay ticks
// after the current one. A delay of zero runs on the next Advance.
func (p *Pump) ScheduleAfter(delay uint64, fn func()) {
	if p == nil || fn == nil {
		return
	}
	due := p.tick.Load() + delay
	p.mu.Lock()
	p.timers = append(p.timers, scheduled{due: due, fn: fn})
	p.mu.Unlock()
}

// CurrentTick reports the number of completed Advance passes.
func (p *Pump) CurrentTick() uint64 {
	if p == nil {
		return 0
	}
	return p.tick.Load()
}

// Advance runs one tick: every callback queued before this call, then every
// timer that has come due, each fully processed in order. Callbacks enqueued
// while Advance runs are held for the next tick.
func (p *Pump) Advance() {
	if p == nil {
		return
	}
	tick := p.tick.Add(1)

	p.mu.Lock()
	batch := p.pending
	p.pending = make([]func(), 0, cap(batch))
	due, later := splitDue(p.timers, tick)
	p.timers = later
	p.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	for _, item := range due {
		item.fn()
	}
}

func splitDue(timers []scheduled, tick uint64) (due, later []scheduled) {
	for _, item := range timers {
		if item.due <= tick {
			due = append(due, item)
		} else {
			later = append(later, item)
		}
	}
	return due, later
}

// Run drives Advance at the given rate until stop closes.
func (p *Pump) Run(stop <-chan struct{}, ticksPerSecond int) {
	if ticksPerSecond <= 0 {
		ticksPerSecond = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(ticksPerSecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Advance()
		}
	}
}
